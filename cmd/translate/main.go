// translate is a command line front end for the translation pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"translate-bridge/internal/services"
	"translate-bridge/pkg/logger"
	"translate-bridge/pkg/types"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFile  string
	logLevel string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "translate",
		Short: "Translate text through SiliconFlow and Dify with fallback",
		Long: `translate runs the translation pipeline from the command line.

Commands:
  text           Translate text given as arguments or on stdin
  test-provider  Check a provider's API key with one short request
  cache          Inspect or clear the persisted response cache`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to read configuration from")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newTextCmd(),
		newTestProviderCmd(),
		newCacheCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and wires the pipeline for one command
func setup(ctx context.Context) (*services.Services, *zap.Logger, error) {
	cfg, err := types.LoadConfigFrom(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Server.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log, err := logger.New(level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	// no periodic purge for a one-shot process
	cfg.Cache.CleanupSchedule = ""

	svc, err := services.NewServices(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return svc, log, nil
}

func newTextCmd() *cobra.Command {
	var (
		target   string
		provider string
		noCache  bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "text [TEXT...]",
		Short: "Translate text",
		Long: `Translate the given text, or stdin when no arguments are given.
Partial output is printed to stderr while the provider streams.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			text := strings.Join(args, " ")
			if text == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}

			svc, log, err := setup(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer svc.Close()

			settings := svc.Settings()
			if provider != "" {
				settings = settings.WithPrimary(types.ProviderID(provider))
			}
			if noCache {
				settings.CacheEnabled = false
			}
			if target == "" {
				target = svc.Config.Translation.TargetLanguage
			}

			stderr := cmd.ErrOrStderr()
			printed := 0
			result, err := svc.TextTranslatorService.Translate(ctx, types.TranslationRequest{
				Text:           text,
				TargetLanguage: target,
				RequestID:      uuid.NewString(),
			}, settings, func(acc string, complete bool) {
				if quiet || complete {
					return
				}
				// a fallback attempt restarts the accumulated text
				if len(acc) < printed {
					fmt.Fprintln(stderr)
					printed = 0
				}
				fmt.Fprint(stderr, acc[printed:])
				printed = len(acc)
			})
			if printed > 0 {
				fmt.Fprintln(stderr)
			}
			if err != nil {
				var all *types.AllProvidersFailedError
				if errors.As(err, &all) {
					return fmt.Errorf("translation failed\n  %s (%s): %v\n  %s (%s): %v", all.Primary.Provider, all.Primary.Role, all.Primary.Err, all.Fallback.Provider, all.Fallback.Role, all.Fallback.Err)
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.TranslatedText)
			source := string(result.ProviderUsed)
			if result.FromCache {
				source = "cache"
			}
			fmt.Fprintf(stderr, "[%s via %s]\n", result.Provider, source)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "to", "t", "", "Target language code (default TARGET_LANGUAGE)")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Primary provider: siliconflow or dify")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the response cache")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print partial output")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		ids := make([]string, 0, len(types.KnownProviders))
		for _, id := range types.KnownProviders {
			ids = append(ids, string(id))
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newTestProviderCmd() *cobra.Command {
	var apiKey, baseURL, model string

	cmd := &cobra.Command{
		Use:       "test-provider PROVIDER",
		Short:     "Check a provider's API key",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(types.ProviderSiliconFlow), string(types.ProviderDify)},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, log, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer log.Sync()
			defer svc.Close()

			id := types.ProviderID(args[0])
			configured := svc.Config.Provider(id)
			if apiKey == "" {
				apiKey = configured.APIKey
			}
			if baseURL == "" {
				baseURL = configured.BaseURL
			}
			if model == "" {
				model = configured.Model
			}

			res := svc.TextTranslatorService.TestProvider(cmd.Context(), id, apiKey, baseURL, model)
			out := cmd.OutOrStdout()
			if !res.Success {
				fmt.Fprintf(out, "FAIL %s: %s\n", id, res.Message)
				if res.Error != "" {
					fmt.Fprintf(out, "  %s\n", res.Error)
				}
				return fmt.Errorf("provider %s test failed", id)
			}
			fmt.Fprintf(out, "OK %s: %s\n", id, res.Message)
			if res.Result != "" {
				fmt.Fprintf(out, "  response: %s\n", res.Result)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key to test (default from config)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Endpoint override")
	cmd.Flags().StringVar(&model, "model", "", "Model override (siliconflow only)")
	return cmd
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the response cache",
		Long: `Inspect or clear the response cache.
Only a persisted cache (DB_DRIVER set) outlives a single command.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, log, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer log.Sync()
			defer svc.Close()

			st := svc.Cache.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d\nvalid: %d\nexpired: %d\nmax: %d\n", st.Total, st.Valid, st.Expired, st.MaxEntries)
			return nil
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached translation",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, log, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer log.Sync()
			defer svc.Close()

			if err := svc.Cache.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	})
	return cmd
}
