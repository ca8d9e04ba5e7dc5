package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/forge"
	"github.com/aretw0/forge/internal/presentation/tui"
	"github.com/aretw0/forge/pkg/adapters/discord"
	httpAdapter "github.com/aretw0/forge/pkg/adapters/http"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and serve crafting requests",
	Long:  `Connects the bot to the Discord gateway, registers the slash command and starts the admin HTTP server.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("mode", "", "Delivery mode override (private or ephemeral)")
	serveCmd.Flags().String("admin-addr", "", "Admin server address override (\"-\" disables it)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
		cfg.Delivery.Mode = mode
	}
	if addr, _ := cmd.Flags().GetString("admin-addr"); addr != "" {
		cfg.Admin.Addr = addr
		if addr == "-" {
			cfg.Admin.Addr = ""
		}
	}
	if err := cfg.ValidateForServe(); err != nil {
		return fmt.Errorf("configuration is invalid:\n%w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		tui.PrintBanner(os.Stdout, forge.Version)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	me, err := session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: resolving bot user: %w", err)
	}

	provisioner := discord.NewProvisioner(session,
		discord.WithGuild(cfg.Discord.GuildID),
		discord.WithCategory(cfg.Discord.CategoryID),
		discord.WithBotUser(me.ID),
		discord.WithProvisionerLogger(logger),
	)
	bot, err := forge.New(cfg, provisioner, forge.WithLogger(logger))
	if err != nil {
		return err
	}
	defer bot.Close()
	if err := bot.Start(ctx); err != nil {
		return err
	}

	gateway := discord.NewGateway(session, bot.Engine,
		discord.WithCommandGuild(cfg.Discord.CommandGuild),
		discord.WithCommandName(cfg.Discord.Command),
		discord.WithGatewayLogger(logger),
	)
	if err := gateway.Open(ctx); err != nil {
		return err
	}
	defer gateway.Close()

	// Channel to listen for errors coming from the admin listener.
	serverErrors := make(chan error, 1)
	var admin *httpAdapter.Server
	if cfg.Admin.Addr != "" {
		opts := []httpAdapter.Option{
			httpAdapter.WithGatherer(prometheus.DefaultGatherer),
			httpAdapter.WithInspector(bot.Tracker),
			httpAdapter.WithVersion(forge.Version),
			httpAdapter.WithLogger(logger),
		}
		for name, check := range bot.Checks() {
			opts = append(opts, httpAdapter.WithCheck(name, check))
		}
		admin = httpAdapter.NewServer(cfg.Admin.Addr, opts...)
		go func() {
			serverErrors <- admin.ListenAndServe()
		}()
	}

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("admin server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if admin != nil {
		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn("admin server did not stop cleanly", "err", err)
		}
	}
	return nil
}
