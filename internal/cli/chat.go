package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harun/iattom/internal/logger"
	"github.com/harun/iattom/pkg/dispatch"
)

var (
	chatContact string
	chatName    string
	chatPersist bool
	chatVerbose bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the dispatcher from the terminal",
	Long: `Read messages from stdin, one per line, and print the replies IAttom
would send. Sessions are kept in memory unless --persist is given. AI
providers, images, documents and research use the configured credentials.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatContact, "contact", "5500000000000", "contact id used for the conversation")
	chatCmd.Flags().StringVar(&chatName, "name", "", "WhatsApp profile name of the contact")
	chatCmd.Flags().BoolVar(&chatPersist, "persist", false, "use the configured session store")
	chatCmd.Flags().BoolVar(&chatVerbose, "verbose", false, "print the outcome of every message")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logCfg := cfg.LoggerConfig()
	logCfg.File = ""
	logCfg.Console = true
	logCfg.Out = cmd.ErrOrStderr()
	if !cmd.Flags().Changed("log-level") {
		logCfg.Level = "warn"
	}
	l, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer l.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, appOptions{
		sender:      &printSender{out: out},
		memoryStore: !chatPersist,
	}, l.Zerolog())
	if err != nil {
		return err
	}
	defer a.Close()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		res := a.dispatcher.Handle(ctx, dispatch.Event{
			ContactID:   chatContact,
			MessageID:   uuid.NewString(),
			Type:        dispatch.MessageTypeText,
			Text:        text,
			ProfileName: chatName,
			Timestamp:   time.Now(),
		})
		if chatVerbose {
			fmt.Fprintf(out, "» %s\n", res.Outcome)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// printSender writes outbound actions to the terminal
type printSender struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printSender) SendText(ctx context.Context, to, body string) error {
	return p.print("%s\n", body)
}

func (p *printSender) SendImage(ctx context.Context, to, url, caption string) error {
	return p.print("[imagem] %s\n%s\n", caption, url)
}

func (p *printSender) SendDocument(ctx context.Context, to, url, filename string) error {
	return p.print("[documento] %s\n%s\n", filename, url)
}

func (p *printSender) print(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, format, args...)
	return err
}
