package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

const (
	reset   = "\033[0m"
	dimText = "\033[90m"
	yellow  = "\033[93m"
	clearLn = "\033[2K\r"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// REPLConfig holds the CLI session settings.
type REPLConfig struct {
	Gateway    string
	Email      string
	InitPrompt string
}

// RunREPL chats with the gateway until the user quits.
func RunREPL(client *Client, cfg REPLConfig) error {
	w := termWidth()
	renderer := NewRenderer(w)
	session := &session{
		client:   client,
		renderer: renderer,
		state:    SessionState{Gateway: cfg.Gateway, Email: cfg.Email},
	}

	welcome, _, err := client.Suggestions(context.Background())
	if err != nil {
		return fmt.Errorf("gateway %s unreachable: %w", cfg.Gateway, err)
	}
	fmt.Println(RenderBanner(BannerInfo{Gateway: cfg.Gateway, Email: cfg.Email, Welcome: welcome}, w))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\001\033[1;36m\002❯\001\033[0m\002 ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Printf("\n%sbye%s\n", dimText, reset)
		rl.Close()
		os.Exit(0)
	}()

	if cfg.InitPrompt != "" {
		session.send(cfg.InitPrompt)
	}

	for {
		input, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Printf("%sbye%s\n", dimText, reset)
			}
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if cmd := ParseSlashCommand(input); cmd != nil {
			if quit := session.command(cmd); quit {
				fmt.Printf("%sbye%s\n", dimText, reset)
				return nil
			}
			continue
		}

		session.send(input)
	}
}

type session struct {
	client   *Client
	renderer *Renderer
	state    SessionState
}

func (s *session) command(cmd *SlashCommand) bool {
	result := ExecuteCommand(cmd, s.state)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch result.Kind {
	case CommandQuit:
		return true
	case CommandReset:
		s.state.ConversationID = ""
	case CommandSetEmail:
		if !entity.IsValidEmail(result.Arg) {
			fmt.Println(s.renderer.RenderError("that does not look like an email address"))
			return false
		}
		s.state.Email = result.Arg
		result.Output = "Email set to " + result.Arg
	case CommandOrders:
		if s.state.Email == "" {
			result.Output = "set your email first: /email <address>"
			break
		}
		orders, err := s.client.Orders(ctx, s.state.Email)
		if err != nil {
			fmt.Println(s.renderer.RenderError(err.Error()))
			return false
		}
		result.Output = s.renderer.RenderOrders(orders)
	case CommandTickets:
		if s.state.Email == "" {
			result.Output = "set your email first: /email <address>"
			break
		}
		tickets, err := s.client.Tickets(ctx, s.state.Email)
		if err != nil {
			fmt.Println(s.renderer.RenderError(err.Error()))
			return false
		}
		result.Output = s.renderer.RenderTickets(tickets)
	case CommandRate:
		if s.state.ConversationID == "" {
			result.Output = "nothing to rate yet"
			break
		}
		fields := strings.SplitN(result.Arg, " ", 2)
		rating, err := strconv.Atoi(fields[0])
		if err != nil || rating < 1 || rating > 5 {
			result.Output = "usage: /rate <1-5> [comment]"
			break
		}
		comment := ""
		if len(fields) > 1 {
			comment = fields[1]
		}
		if err := s.client.Feedback(ctx, s.state.ConversationID, rating, comment); err != nil {
			fmt.Println(s.renderer.RenderError(err.Error()))
			return false
		}
		result.Output = "Thanks for the feedback!"
	}

	if result.Output != "" {
		fmt.Println(result.Output)
	}
	return false
}

// send runs one chat turn. Ctrl+C cancels the stream but keeps the REPL.
func (s *session) send(text string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT)
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
			fmt.Printf("\n%sinterrupted%s\n", yellow, reset)
		case <-ctx.Done():
		}
	}()

	spinner := newSpinner()
	spinner.Update("thinking...")

	var textBuf strings.Builder
	var finish *entity.FinishInfo
	convID, err := s.client.Chat(ctx, ChatRequest{
		Messages:       []ChatMessage{{Role: string(entity.RoleUser), Content: text}},
		ConversationID: s.state.ConversationID,
		CustomerEmail:  s.state.Email,
	}, func(ev entity.ChatEvent) {
		switch ev.Type {
		case entity.EventTextDelta:
			spinner.Stop()
			fmt.Print(ev.Content)
			textBuf.WriteString(ev.Content)
		case entity.EventToolCall:
			spinner.Stop()
			spinner.UpdateLine(func(frame string) string {
				return s.renderer.RenderToolCall(ev.ToolCall, frame)
			})
		case entity.EventToolResult:
			spinner.Stop()
			fmt.Println(s.renderer.RenderToolResult(ev.ToolCall))
		case entity.EventError:
			spinner.Stop()
			fmt.Println("\n" + s.renderer.RenderError(ev.Error))
		case entity.EventFinish:
			spinner.Stop()
			finish = ev.Finish
		}
	})
	spinner.Stop()

	if textBuf.Len() > 0 && !strings.HasSuffix(textBuf.String(), "\n") {
		fmt.Println()
	}
	if convID != "" {
		s.state.ConversationID = convID
	}

	var rl *RateLimitedError
	switch {
	case errors.As(err, &rl):
		fmt.Println(s.renderer.RenderError(rl.Error()))
	case err != nil && !errors.Is(err, context.Canceled):
		fmt.Println(s.renderer.RenderError(err.Error()))
	case finish != nil:
		fmt.Println(s.renderer.RenderFinish(finish))
	}
}

// asyncSpinner animates a status line until stopped.
type asyncSpinner struct {
	mu      sync.Mutex
	running bool
	line    func(frame string) string
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newSpinner() *asyncSpinner {
	return &asyncSpinner{}
}

// Update shows msg next to the spinner.
func (s *asyncSpinner) Update(msg string) {
	s.UpdateLine(func(frame string) string {
		return fmt.Sprintf("%s %s%s%s", frame, dimText, msg, reset)
	})
}

// UpdateLine renders each frame with fn.
func (s *asyncSpinner) UpdateLine(fn func(frame string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.line = fn
	if !s.running {
		s.running = true
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.run()
	}
}

func (s *asyncSpinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	fmt.Print(clearLn)
}

func (s *asyncSpinner) run() {
	defer close(s.doneCh)

	frame := 0
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			line := s.line
			s.mu.Unlock()

			fmt.Print(clearLn + line(spinnerFrames[frame%len(spinnerFrames)]))
			frame++
		}
	}
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
