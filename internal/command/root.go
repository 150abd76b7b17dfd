package command

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aymanbagabas/clipio/clipboard"
	"github.com/aymanbagabas/clipio/internal/bridge"
	"github.com/aymanbagabas/clipio/internal/config"
	"github.com/aymanbagabas/clipio/internal/logging"
)

const AppName = "clipio"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

// ErrReported is returned in strict mode after a runtime error has already
// been printed.
var ErrReported = errors.New("error reported")

// Opener acquires the clipboard handle.
type Opener func(opts clipboard.Options) (bridge.Clipboard, error)

// OpenSystem opens the system clipboard.
func OpenSystem(opts clipboard.Options) (bridge.Clipboard, error) {
	return clipboard.Open(opts)
}

func NewRootCmd(version string, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   AppName,
		Short: "Bridge the system clipboard and standard streams",
		Long: `clipio copies the clipboard to standard output, or with --write copies
standard input to the clipboard and echoes it to standard output.`,
		Example: `  clipio > notes.txt
  git rev-parse HEAD | clipio -w
  clipio --image > screenshot.png`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd, cfg, open)
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetIn(os.Stdin)
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, c.UsageString())
	})

	cmd.Flags().BoolP("write", "w", false, "write stdin to the clipboard")
	cmd.Flags().BoolP("verbose", "v", false, "report additional error details")
	cmd.Flags().BoolP("image", "i", false, "operate on PNG image content instead of text")
	cmd.Flags().StringP("backend", "b", string(clipboard.BackendAuto), "clipboard backend: auto, native, command or osc52")
	cmd.Flags().Bool("wait", false, "after writing, keep serving the clipboard until it is replaced")
	cmd.Flags().Bool("strict", false, "exit with status 1 after reporting an error")

	return cmd
}

func run(cmd *cobra.Command, cfg *config.Config, open Opener) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	clip, err := open(clipboard.Options{
		Backend:  cfg.ClipboardBackend(),
		Terminal: cmd.ErrOrStderr(),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("open clipboard: %w", err)
	}

	b := bridge.New(clip, cmd.InOrStdin(), cmd.OutOrStdout(), bridge.Options{
		Format: cfg.Format(),
		Logger: logger,
	})

	if cfg.Write {
		var changed <-chan struct{}
		changed, err = b.Write()
		// A non-nil channel means the content lives only as long as this
		// process serves it.
		if err == nil && changed != nil {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if cfg.Wait {
				b.Wait(ctx, changed)
			} else {
				handOff(ctx, b, cfg.Format(), changed, logger)
			}
		}
	} else {
		err = b.Read()
	}

	if err != nil {
		logger.Debug("operation failed", zap.Bool("write", cfg.Write), zap.Error(err))
		bridge.Report(cmd.ErrOrStderr(), err, cfg.Verbose)
		if cfg.Strict {
			return ErrReported
		}
	}
	return nil
}

func Execute() error {
	return NewRootCmd(Version, OpenSystem).Execute()
}
