package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	app "github.com/gugu/cmiuc-client/internal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const releaseVersion = "0.1.0"

var errMissingFlag = errors.New("required flag is empty")

type options struct {
	configPath string

	token string

	roomID string
	sender string

	gameID   string
	memberID int64
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "cmiuc",
		Short:         "Terminal client for the Catch Me If You Can card game.",
		Args:          cobra.NoArgs,
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "path to the YAML config (env: CMIUC_* when missing)")

	cmd.AddCommand(newLoginCmd(opts), newLogoutCmd(opts), newChatCmd(opts), newPlayCmd(opts))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("cmiuc v{{.Version}}\n")

	return cmd
}

func newLoginCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the bearer token used for every message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.token == "" {
				return errors.Join(errMissingFlag, errors.New("--token"))
			}

			return withApp(cmd.Context(), opts, func(ctx context.Context, application *app.App) error {
				return application.Login(ctx, opts.token)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.token, "token", "t", "", "bearer token issued by the game server")

	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, application *app.App) error {
				return application.Logout(ctx)
			})
		},
	}
}

func newChatCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a chat room; every line of stdin is sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.roomID == "" || opts.sender == "" {
				return errors.Join(errMissingFlag, errors.New("--room and --sender"))
			}

			return withApp(cmd.Context(), opts, func(ctx context.Context, application *app.App) error {
				return application.RunChat(ctx, opts.roomID, opts.sender, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVarP(&opts.roomID, "room", "r", "", "chat room id")
	cmd.Flags().StringVarP(&opts.sender, "sender", "s", "", "name shown next to your messages")

	return cmd
}

func newPlayCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Follow a game; stdin takes \"pick <memberId> <index>\" and \"view\"",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.gameID == "" {
				return errors.Join(errMissingFlag, errors.New("--game"))
			}

			return withApp(cmd.Context(), opts, func(ctx context.Context, application *app.App) error {
				return application.RunGame(ctx, opts.gameID, opts.memberID, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVarP(&opts.gameID, "game", "g", "", "game id")
	cmd.Flags().Int64VarP(&opts.memberID, "member", "m", 0, "your member id (default: subject of the stored token)")

	return cmd
}

// withApp loads config and logger, connects the app and runs fn until a
// signal arrives.
func withApp(ctx context.Context, opts *options, fn func(ctx context.Context, application *app.App) error) error {
	conf, err := initConfig(opts.configPath)
	if err != nil {
		return err
	}

	logger := initLogger(conf)

	ctx, cancel := app.WithSignals(ctx, logger)
	defer cancel()

	application, err := app.New(ctx, logger, conf)
	if err != nil {
		return err
	}
	defer application.Close()

	return fn(ctx, application)
}

func defaultConfigPath() string {
	baseDir, err := os.Getwd()
	if err != nil {
		return "config.yml"
	}

	return filepath.Join(baseDir, "config.yml")
}
