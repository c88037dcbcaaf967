package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/socialhub/socialhub/backend/go-services/internal/config"
	"github.com/socialhub/socialhub/backend/go-services/internal/database"
	"github.com/socialhub/socialhub/backend/go-services/internal/sessions"
	"github.com/socialhub/socialhub/backend/go-services/internal/tokens"
	"go.mongodb.org/mongo-driver/mongo"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sessionctl",
		Short: "Inspect tokens and manage refresh sessions",
		Long: `sessionctl reads the same environment as the API server (JWT_SECRET,
SESSION_STORE, MONGODB_URI, REDIS_HOST, ...).

Commands:
  revoke-all  Revoke every active refresh session of an identity
  inspect     Decode a token, verify it and show its session state`,
		SilenceUsage: true,
	}
	root.AddCommand(newRevokeAllCmd(), newInspectCmd())
	return root
}

func newRevokeAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-all <identity>",
		Short: "Revoke every active refresh session of an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			store, closeFn, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			n, err := store.RevokeAllForIdentity(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d session(s) for %s\n", n, args[0])
			return nil
		},
	}
}

func newInspectCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Decode a token, verify it and show its session state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			raw := args[0]
			claims, err := tokens.PeekClaims(raw)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			printClaims(out, claims)

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			codec, err := tokens.NewCodec(cfg.JWT)
			if err != nil {
				return err
			}
			if id, err := codec.VerifyAccess(raw); err == nil {
				fmt.Fprintf(out, "verified: access token for %s\n", id)
				return nil
			}
			rc, err := codec.VerifyRefresh(raw)
			if err != nil {
				fmt.Fprintf(out, "verified: no (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "verified: refresh token for %s, session %s\n", rc.Identity, rc.SessionID)
			if offline {
				return nil
			}

			store, closeFn, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			sess, err := store.FindActive(cmd.Context(), rc.SessionID, rc.Identity)
			if err != nil {
				fmt.Fprintf(out, "session: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "session: %s\n", sessionState(sess, time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the session store lookup")
	return cmd
}

func sessionState(s *sessions.RefreshSession, now time.Time) string {
	switch {
	case s.Revoked():
		return "revoked at " + s.RevokedAt.Format(time.RFC3339)
	case s.Expired(now):
		return "expired at " + s.ExpiresAt.Format(time.RFC3339)
	default:
		return "active until " + s.ExpiresAt.Format(time.RFC3339)
	}
}

func printClaims(w io.Writer, claims map[string]interface{}) {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := claims[k]
		if f, ok := v.(float64); ok && (k == "exp" || k == "iat") {
			v = time.Unix(int64(f), 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%-4s %v\n", k, v)
	}
}

// openStore connects to the configured backends and returns the session
// store plus a function releasing the connections.
func openStore(ctx context.Context, cfg *config.Config) (sessions.Store, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rdb, err := database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	var client *mongo.Client
	var db *mongo.Database
	if cfg.MongoDB.URI != "" && cfg.Sessions.Store == "mongo" {
		client, err = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			if rdb != nil {
				_ = rdb.Close()
			}
			return nil, nil, err
		}
		db = client.Database(cfg.MongoDB.Database)
	}
	closeFn := func() {
		if client != nil {
			_ = client.Disconnect(context.Background())
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	}
	store, err := sessions.OpenStore(ctx, cfg.Sessions, db, rdb)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}
