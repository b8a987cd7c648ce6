package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nadzzz/nagato/internal/audio"
	"github.com/nadzzz/nagato/internal/voice"
)

var listenOnce bool

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Listen to the microphone and run spoken commands",
	Long: `Records a fixed-length clip from the default microphone (sox "rec"),
transcribes it with the configured interpreter and runs it as a command.
Repeats until interrupted unless --once is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		listener := voice.NewListener(audio.NewRecorder(cfg.Audio), a.backend,
			voice.WithSpeaker(a.speaker),
			voice.WithLanguage(cfg.Interpreter.Local.Language),
		)
		out := cmd.OutOrStdout()

		if listenOnce {
			text, err := listener.Listen(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "You: %s\n%s: %s\n", text, cfg.Assistant.Name, a.dispatcher.ProcessCommand(ctx, text))
			return nil
		}

		for t := range listener.Run(ctx) {
			if t.Err != nil {
				slog.Warn("listening failed", "error", t.Err)
				t.Done()
				continue
			}
			fmt.Fprintf(out, "You: %s\n", t.Text)
			fmt.Fprintf(out, "%s: %s\n", cfg.Assistant.Name, a.dispatcher.ProcessCommand(ctx, t.Text))
			// Let the reply finish before the microphone opens again.
			if a.queue != nil {
				_ = a.queue.Wait(ctx)
			}
			t.Done()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().BoolVar(&listenOnce, "once", false, "run a single listen cycle and exit")
}
