package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"faqbot/internal/auth"
	"faqbot/internal/logging"
	"faqbot/internal/middleware"
	"faqbot/internal/tui"
	"faqbot/internal/version"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	reloadURL     string
	reloadToken   string
	reloadTimeout time.Duration
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the index from the corpus and persist the artifacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, a *app) error {
			snap, err := a.manager.Reload(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %d items (%d usable, vocabulary %d) build_id=%s\n",
				snap.Items(), snap.UsableRows, snap.Vocabulary(), snap.BuildID)
			return nil
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Answer a single question and print the JSON response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, a *app) error {
			if _, err := a.manager.EnsureReady(ctx); err != nil {
				return err
			}
			resp, err := a.service.Answer(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		})
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive terminal chat against the local index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Log output would tear the alt screen.
		return withApp(cmd, logging.Discard(), func(ctx context.Context, a *app) error {
			if _, err := a.manager.EnsureReady(ctx); err != nil {
				return err
			}
			return tui.Run(tui.ModelConfig{
				Service:       a.service,
				Index:         a.manager,
				AssistantName: "faqbot",
			})
		})
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask a running server to rebuild its index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := reloadURL
		token := reloadToken
		if url == "" || token == "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if url == "" {
				url = fmt.Sprintf("http://localhost:%d/reload", cfg.Port)
			}
			if token == "" {
				token = cfg.ReloadToken
			}
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), reloadTimeout)
		defer cancel()
		body, err := requestReload(ctx, http.DefaultClient, url, token)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(body)))
		return nil
	},
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <secret>",
	Short: "Print a bcrypt hash for reload_token_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashSecret(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	reloadCmd.Flags().StringVar(&reloadURL, "url", "", "reload endpoint (default http://localhost:<port>/reload)")
	reloadCmd.Flags().StringVar(&reloadToken, "token", "", "admin token (default RELOAD_TOKEN)")
	reloadCmd.Flags().DurationVar(&reloadTimeout, "timeout", 2*time.Minute, "request timeout")
}

// withApp loads config, wires an app and runs fn. A nil logger means the
// configured one.
func withApp(cmd *cobra.Command, logger *log.Logger, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if logger == nil {
		if logger, err = newLogger(cfg); err != nil {
			return err
		}
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a)
}

// requestReload posts to a running server's reload endpoint and returns the
// response body of a successful reload.
func requestReload(ctx context.Context, client *http.Client, url, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if token != "" {
		req.Header.Set(auth.AdminTokenHeader, token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	var apiErr middleware.ErrorBody
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return nil, fmt.Errorf("reload rejected (%d %s): %s", resp.StatusCode, apiErr.Error, apiErr.Message)
	}
	return nil, errors.New("reload rejected: " + resp.Status)
}
