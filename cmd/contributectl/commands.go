package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensupplyhub/contribute/internal/api"
	"github.com/opensupplyhub/contribute/internal/auth"
	"github.com/opensupplyhub/contribute/internal/domain"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/store"
)

var (
	staffContributorID int
	staffName          string

	reindexServer  string
	reindexTimeout time.Duration

	listRole   string
	listLimit  int
	listCursor string
)

// staffTokenCmd issues a staff grant
var staffTokenCmd = &cobra.Command{
	Use:   "staff-token",
	Short: "Issue a staff grant for the moderation dashboard",
	Long: `Issue a staff grant signed with the gateway's token key.

The grant is sent as X-Staff-Token to POST /api/v1/sessions and exchanged
for a staff session. It expires after STAFF_TOKEN_TTL.`,
	RunE: runStaffToken,
}

// reindexCmd rebuilds the moderation index of a running gateway
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the moderation index of a running gateway",
	Long: `Rebuild the moderation index from the Open Supply Hub queue.

The gateway holds the index open, so the rebuild is requested over HTTP with a
freshly issued staff grant.`,
	RunE: runReindex,
}

// sessionsCmd groups session maintenance
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Maintain stored sessions",
}

// sessionsPruneCmd deletes expired sessions
var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired sessions from the session store",
	Long: `Delete sessions idle for longer than SESSION_TTL, with their workflow
snapshots. The gateway must be stopped: Badger allows a single writer.`,
	RunE: runSessionsPrune,
}

// sessionsListCmd prints stored sessions of one role
var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions of one role",
	Long: `List stored sessions of one role, one page at a time. Pass the printed
cursor to --cursor for the next page. The gateway must be stopped.`,
	RunE: runSessionsList,
}

// lookupCmd fetches a production location
var lookupCmd = &cobra.Command{
	Use:   "lookup <os-id>",
	Short: "Fetch a production location from Open Supply Hub",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

func init() {
	staffTokenCmd.Flags().IntVar(&staffContributorID, "contributor-id", 0, "Open Supply Hub contributor ID of the moderator")
	staffTokenCmd.Flags().StringVar(&staffName, "name", "", "Moderator name recorded in the grant")
	//nolint:errcheck
	_ = staffTokenCmd.MarkFlagRequired("contributor-id")

	reindexCmd.Flags().StringVar(&reindexServer, "server", "http://localhost:8080", "Gateway base URL")
	reindexCmd.Flags().DurationVar(&reindexTimeout, "timeout", 10*time.Minute, "Request timeout")

	sessionsListCmd.Flags().StringVar(&listRole, "role", string(domain.RoleStaff), "Session role (contributor or staff)")
	sessionsListCmd.Flags().IntVar(&listLimit, "limit", store.DefaultPageLimit, "Sessions per page")
	sessionsListCmd.Flags().StringVar(&listCursor, "cursor", "", "Cursor printed by the previous page")
}

func issueStaffToken(keyPath string, staffTTL time.Duration) (string, error) {
	key, err := auth.LoadOrGenerateKey(keyPath)
	if err != nil {
		return "", fmt.Errorf("load token key: %w", err)
	}
	tokens, err := auth.NewTokenService(key, time.Hour, staffTTL)
	if err != nil {
		return "", err
	}
	return tokens.IssueStaffToken(staffContributorID, staffName)
}

func runStaffToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if staffContributorID <= 0 {
		return fmt.Errorf("--contributor-id must be positive")
	}

	grant, err := issueStaffToken(cfg.Data.KeyPath(), cfg.Session.StaffTokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), grant)
	return nil
}

func runReindex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	grant, err := issueStaffToken(cfg.Data.KeyPath(), time.Hour)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), reindexTimeout)
	defer cancel()

	client := &http.Client{}
	base := strings.TrimRight(reindexServer, "/")

	var session api.APIEnvelope
	var created struct {
		Data api.CreateSessionResponse `json:"data"`
	}
	if err := call(ctx, client, http.MethodPost, base+"/api/v1/sessions",
		map[string]string{api.StaffTokenHeader: grant}, &session, &created); err != nil {
		return fmt.Errorf("create staff session: %w", err)
	}

	var result struct {
		Data api.ReindexResponse `json:"data"`
	}
	if err := call(ctx, client, http.MethodPost, base+"/api/v1/dashboard/reindex",
		map[string]string{api.SessionTokenHeader: created.Data.Token}, &session, &result); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	// The staff session is not needed after the rebuild.
	//nolint:errcheck
	_ = call(ctx, client, http.MethodDelete, base+"/api/v1/sessions/current",
		map[string]string{api.SessionTokenHeader: created.Data.Token}, &session, nil)

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d moderation events\n", result.Data.Indexed)
	return nil
}

// call performs one gateway request and decodes its envelope into env and out.
func call(ctx context.Context, client *http.Client, method, url string, headers map[string]string, env *api.APIEnvelope, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if err := json.Unmarshal(raw, env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func runSessionsPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	st, err := store.New(cfg.Data.BadgerPath(), cfg.Session.TTL, log.Logger)
	if err != nil {
		return fmt.Errorf("open session store (is the gateway running?): %w", err)
	}
	defer st.Close()

	n, err := st.DeleteStaleSessions(cmd.Context(), time.Now(), cfg.Session.TTL)
	if err != nil {
		return err
	}
	if err := st.RunGC(); err != nil {
		log.Warn("value log GC failed", "error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d sessions\n", n)
	return nil
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	role := domain.Role(listRole)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", listRole)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	st, err := store.New(cfg.Data.BadgerPath(), cfg.Session.TTL, log.Logger)
	if err != nil {
		return fmt.Errorf("open session store (is the gateway running?): %w", err)
	}
	defer st.Close()

	page, err := st.ListSessions(cmd.Context(), role, store.PaginationParams{Limit: listLimit, Cursor: listCursor})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCONTRIBUTOR\tCREATED\tLAST SEEN")
	for _, sess := range page.Items {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", sess.ID, sess.ContributorID,
			sess.CreatedAt.Format(time.RFC3339), sess.LastSeenAt.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if page.HasMore {
		fmt.Fprintf(cmd.OutOrStdout(), "next cursor: %s\n", page.NextCursor)
	}
	return nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	osID, err := domain.ParseOSID(args[0])
	if err != nil {
		return err
	}

	client := oshub.New(cfg.Upstream, log.Logger)
	loc, err := client.GetLocation(cmd.Context(), string(osID))
	if err != nil {
		return err
	}
	if loc.IsHistoricalID(osID) {
		log.Info("OS ID has been merged", "searched", osID, "current", loc.OSID)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(loc)
}
