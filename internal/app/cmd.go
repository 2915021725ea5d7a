package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitoshi/adledger/internal/config"
)

// NewRootCommand はCLIのルートコマンドを生成する。
// サブコマンドなしで起動した場合は serve と同じ動作になる。
// w はログと出力の書き込み先。
func NewRootCommand(w io.Writer) *cobra.Command {
	serveOpts := ServeOptions{Sweeper: true}

	root := &cobra.Command{
		Use:           "adledger",
		Short:         "Telegram ad-slot sale ledger bot",
		Long:          "Telegramボットで広告枠の販売を記録し、スプレッドシートへ複製してリマインダーを送る。",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: withConfig(w, func(cfg *config.Config) error {
			return runServe(cfg, serveOpts)
		}),
	}
	root.SetOut(w)

	root.AddCommand(newServeCommand(w))
	root.AddCommand(newMigrateCommand(w))
	root.AddCommand(newSweepCommand(w))
	root.AddCommand(newHealthcheckCommand())

	return root
}

func newServeCommand(w io.Writer) *cobra.Command {
	opts := ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot, the HTTP server and background jobs",
		Args:  cobra.NoArgs,
		RunE: withConfig(w, func(cfg *config.Config) error {
			slog.Info("starting application",
				slog.String("command", "serve"),
				slog.String("port", cfg.ServerPort),
				slog.Bool("sweeper", opts.Sweeper),
			)
			return runServe(cfg, opts)
		}),
	}

	cmd.Flags().BoolVar(&opts.Sweeper, "sweeper", true, "send reminders from this process")
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "apply database migrations before starting")

	return cmd
}

func newMigrateCommand(w io.Writer) *cobra.Command {
	up := withConfig(w, runMigrateUp)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending database migrations",
		Args:  cobra.NoArgs,
		RunE:  up,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending database migrations",
		Args:  cobra.NoArgs,
		RunE:  up,
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back database migrations",
		Args:  cobra.NoArgs,
		RunE: withConfig(w, func(cfg *config.Config) error {
			return runMigrateDown(cfg, steps)
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: withConfig(w, func(cfg *config.Config) error {
			return runMigrateVersion(cfg, w)
		}),
	})

	return cmd
}

func newSweepCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep and exit",
		Args:  cobra.NoArgs,
		RunE:  withConfig(w, runSweep),
	}
}

// newHealthcheckCommand はヘルスチェックコマンドを生成する。
// 軽量サブコマンドのため、設定の読み込みとログの初期化を行わない。
func newHealthcheckCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(port)
		},
	}
	cmd.Flags().StringVar(&port, "port", healthcheckPort(), "HTTP server port")

	return cmd
}

// withConfig は初期化を済ませてから fn を呼ぶRunEを返す。
func withConfig(w io.Writer, fn func(cfg *config.Config) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := Init(w)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		return fn(cfg)
	}
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}

// Execute はコマンドを実行し、プロセスの終了コードを返す。
func Execute() int {
	if err := Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
