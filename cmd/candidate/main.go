// Command candidate - консольный клиент кандидата: вопросы с озвучкой, таймер ответа и прокторинг.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"interview-proctor/internal/config"
)

type options struct {
	serverURL   string
	candidateID string
	configPath  string
	handsFree   bool
	player      string
	voice       string
	logLevel    string
	timeout     time.Duration
}

func main() {
	_ = godotenv.Load()
	app := config.LoadAppConfig()

	opts := options{}
	rootCmd := &cobra.Command{
		Use:   "candidate",
		Short: "candidate runs a proctored AI interview in the terminal",
		Long: `candidate connects to the interview server, reads the questions aloud and
collects answers from stdin. Proctoring events are typed as commands:
  /hide /show              window hidden or visible again
  /exit-fullscreen /fullscreen
  /send                    submit the typed answer
  /retry                   start again after a failed start
  /quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, os.Stdin, cmd.OutOrStdout())
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.serverURL, "server", "s", app.APIBaseURL, "interview server URL")
	flags.StringVarP(&opts.candidateID, "candidate", "c", "", "candidate id")
	flags.StringVar(&opts.configPath, "config", "config/interview.yaml", "interview config file")
	flags.BoolVar(&opts.handsFree, "hands-free", false, "submit the answer after a pause in dictation")
	flags.StringVar(&opts.player, "player", "mpg123 -q -", "command playing mp3 from stdin")
	flags.StringVar(&opts.voice, "voice", "espeak", "local speech command used when server audio is unavailable")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flags.DurationVar(&opts.timeout, "http-timeout", 0, "HTTP timeout, 0 for none")
	_ = rootCmd.MarkFlagRequired("candidate")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
