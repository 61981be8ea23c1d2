package dispatch

import (
	"fmt"
	"strings"

	"github.com/harun/iattom/pkg/trigger"
)

const (
	DefaultPersona = "Você é o IAttom, um assistente de inteligência artificial gentil, acolhedor e objetivo. " +
		"Responda sempre em português do Brasil, em mensagens curtas próprias para WhatsApp. " +
		"Quando a pessoa estiver sobrecarregada, sugira um primeiro passo pequeno e concreto."
	DefaultSignOff = "💜"
)

const helpText = "Posso te ajudar com estes comandos:\n" +
	"• *qual seu nome?* – eu me apresento\n" +
	"• *ajuda* ou *menu* – mostra este menu\n" +
	"• *foco* – técnica Pomodoro\n" +
	"• *img: descrição* – tento gerar uma imagem\n" +
	"• *diário: texto* – guardo uma anotação (*diário:* sozinho mostra a última)\n" +
	"• *pdf: título | texto* – gero um PDF\n" +
	"• *docx: título | texto* – gero um documento Word\n" +
	"• *wiki: tema* – busco um resumo na Wikipédia\n" +
	"• *buscar: termos* – pesquiso na web\n" +
	"• *resumir: link* – resumo uma página\n" +
	"• *reset* – limpo preferências"

const (
	identityReply = "Eu sou o IAttom, o seu Assistente de Inteligência Artificial. 😊"
	focusReply    = "Vamos no simples: 25min de foco + 5min de pausa (Pomodoro).\n" +
		"1) Escolha 1 tarefa pequena.\n" +
		"2) Avise quando concluir a primeira — sigo com você."
	resetReply       = "Pronto! Zerei suas preferências e memórias locais."
	resetFailedReply = "Não consegui zerar suas memórias agora. Tenta de novo em instantes?"

	imageUsage       = "Diga o que quer desenhar: ex. *img: um pôr do sol em aquarela*."
	imageUnavailable = "Para gerar imagens, defina a OPENAI_API_KEY."
	imageFailed      = "Não consegui gerar a imagem agora. Tenta de novo daqui a pouco?"
	imageCaption     = "IAttom – imagem: %s"

	journalSaved  = "Anotado no seu diário. 📘"
	journalLast   = "Sua última anotação foi: “%s”."
	journalEmpty  = "Seu diário está vazio. Escreva: *diário: ...*"
	journalFailed = "Não consegui guardar sua anotação agora. Tenta de novo em instantes?"

	documentUsage       = "Diga o título e o texto: ex. *%s: Plano da semana | estudar segunda e quarta*."
	documentUnavailable = "Para gerar documentos, defina a PUBLIC_BASE_URL do serviço."
	documentFailed      = "Não consegui gerar o documento agora. Tenta de novo daqui a pouco?"
	documentReady       = "Prontinho! Seu documento *%s* está logo abaixo. 📄"

	knowledgeUsage       = "Diga o tema: ex. *wiki: fotossíntese*."
	knowledgeNotFound    = "Não encontrei nada sobre “%s”. Tenta com outras palavras?"
	searchUsage          = "Diga o que buscar: ex. *buscar: técnicas de memorização*."
	searchNotFound       = "Não encontrei resultados para “%s”."
	summarizeUsage       = "Mande o link: ex. *resumir: https://exemplo.com/artigo*."
	summarizeInvalidURL  = "Esse link não parece válido. Envie o endereço completo, começando com http:// ou https://."
	summarizeBlockedURL  = "Não consigo abrir esse link. Envie o endereço de uma página pública da internet."
	researchUnavailable  = "Essa função não está disponível no momento."
	researchFailed       = "Não consegui consultar agora. Tenta de novo daqui a pouco?"
	summarizeReplyFormat = "Resumo de %s:\n\n%s"

	nameLearnedReply  = "Prazer te conhecer, %s! Pode contar comigo no que precisar."
	greetingAnonymous = "Oi! Eu sou o IAttom — o seu Assistente de Inteligência Artificial. Como posso te chamar? 💜"
	greetingNamed     = "Oi, %s! Eu sou o IAttom — o seu Assistente de Inteligência Artificial. Que bom te ver por aqui! 💜"

	emotionalReply = "eu tô com você. Respira um pouco comigo, tá? " +
		"Se quiser, me conta o que está pesando — a gente quebra em passos pequenos. 💜"
	productivityReply = "vamos por partes: 1) Liste 3 coisas que realmente importam hoje. " +
		"2) Comece pela menor. 3) Avise quando concluir a primeira — eu sigo com você."
	studyReply = "estudo rende mais com blocos curtos: 25min foco + 5min pausa (Pomodoro). " +
		"Quer que eu te lembre?"
	checkinReply = "passando pra saber: como você está se sentindo agora? " +
		"Se quiser desabafar ou organizar o dia, tô aqui. 💜"
	fallbackReply = "entendi. Me dá um pouquinho mais de contexto pra eu te ajudar melhor? " +
		"Se for algo rápido, posso te sugerir o primeiro passo. 💜"
)

// addressed prefixes body with "Name, " when a name is known and capitalizes
// the first letter otherwise.
func addressed(name, body string) string {
	if name != "" {
		return name + ", " + body
	}
	if body == "" {
		return body
	}
	r := []rune(body)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func greeting(name string) string {
	if name == "" {
		return greetingAnonymous
	}
	return fmt.Sprintf(greetingNamed, name)
}

func triggerReply(cat trigger.Category, name string) string {
	switch cat {
	case trigger.Emotional:
		return addressed(name, emotionalReply)
	case trigger.Productivity:
		return addressed(name, productivityReply)
	default:
		return addressed(name, studyReply)
	}
}

// withSignOff appends signOff unless reply already contains it
func withSignOff(reply, signOff string) string {
	if signOff == "" || strings.Contains(reply, signOff) {
		return reply
	}
	return reply + " " + signOff
}
