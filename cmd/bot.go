package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run only the Telegram bot",
	Long:  `Start the Telegram bot without the web server. Requires TELEGRAM_BOT_TOKEN.`,
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.RequireTelegram(); err != nil {
		return err
	}

	bot, err := newTelegramBot(a)
	if err != nil {
		return err
	}

	return bot.Run(ctx)
}
