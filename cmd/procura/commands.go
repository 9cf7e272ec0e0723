package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/kalambet/procura/internal/config"
	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
	"github.com/kalambet/procura/internal/vendors"
	"github.com/kalambet/procura/internal/workflow"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- rfp ---

var rfpCmd = &cobra.Command{
	Use:   "rfp",
	Short: "List, edit, send and close RFPs",
}

var rfpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent RFPs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/rfps?limit=%d", limit))
		if err != nil {
			return err
		}

		var rfps []rfp.RFP
		if err := decodeJSON(resp, &rfps); err != nil {
			return err
		}

		if len(rfps) == 0 {
			fmt.Println("No RFPs found.")
			return nil
		}
		renderRFPs(os.Stdout, rfps)
		return nil
	},
}

func renderRFPs(w io.Writer, rfps []rfp.RFP) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range rfps {
		budget := "-"
		if r.Budget != nil {
			budget = strconv.FormatFloat(*r.Budget, 'f', -1, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			colorize(colorCyan, r.ID),
			statusLabel(r.Status),
			budget,
			truncate(r.Title, 60),
		)
	}
	tw.Flush()
}

func statusLabel(s rfp.Status) string {
	switch s {
	case rfp.StatusSent:
		return colorize(colorGreen, string(s))
	case rfp.StatusClosed:
		return colorize(colorYellow, string(s))
	default:
		return string(s)
	}
}

var rfpShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single RFP as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/rfps/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var r rfp.RFP
		if err := decodeJSON(resp, &r); err != nil {
			return err
		}
		return printJSON(r)
	},
}

var rfpUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit the title, description, budget or deadline of an RFP",
	Long: `Edit an RFP by hand.

Examples:
  procura rfp update 3f2a --budget 45000
  procura rfp update 3f2a --deadline 2026-11-30 --title "Office laptops"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := patchFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/rfps/"+url.PathEscape(args[0]), patch)
		if err != nil {
			return err
		}

		var r rfp.RFP
		if err := decodeJSON(resp, &r); err != nil {
			return err
		}
		printSuccess("Updated RFP %s", r.ID)
		return nil
	},
}

func patchFromFlags(cmd *cobra.Command) (workflow.RFPPatch, error) {
	var patch workflow.RFPPatch
	flags := cmd.Flags()
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		patch.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		patch.Description = &v
	}
	if flags.Changed("budget") {
		v, _ := flags.GetFloat64("budget")
		patch.Budget = &v
	}
	if flags.Changed("deadline") {
		v, _ := flags.GetString("deadline")
		patch.Deadline = &v
	}
	if patch == (workflow.RFPPatch{}) {
		return patch, fmt.Errorf("one of --title, --description, --budget or --deadline is required")
	}
	return patch, nil
}

var rfpSendCmd = &cobra.Command{
	Use:   "send <id>",
	Short: "Email an RFP to vendors",
	Long: `Email an RFP to vendors, given by id or email address.
Without --vendor, vendors are picked interactively.

Examples:
  procura rfp send 3f2a --vendor sales@acme.test --vendor 9c1e`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		refs, _ := cmd.Flags().GetStringSlice("vendor")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(refs) == 0 {
			refs, err = pickVendors(cmd.Context(), client)
			if err != nil {
				return err
			}
		}
		return sendRFP(cmd.Context(), client, args[0], refs)
	},
}

func sendRFP(ctx context.Context, client *apiClient, id string, refs []string) error {
	resp, err := client.post(ctx, "/rfps/"+url.PathEscape(id)+"/send", map[string]any{"vendors": refs})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case 202:
		var queued struct {
			JobID string `json:"job_id"`
		}
		json.Unmarshal(body, &queued)
		printSuccess("Delivery to %d vendor(s) queued (job %s)", len(refs), queued.JobID)
		return nil
	case 200, 502:
		var res workflow.SendResult
		if err := json.Unmarshal(body, &res); err != nil {
			return fmt.Errorf("decoding send result: %w", err)
		}
		for _, d := range res.Sent {
			printSuccess("Sent to %s", d.VendorEmail)
		}
		for _, d := range res.Failed {
			printError("Failed to send to %s: %s", d.VendorEmail, d.Error)
		}
		if len(res.Sent) == 0 {
			return fmt.Errorf("no vendor received the RFP")
		}
		return nil
	default:
		var e apiErrorBody
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
}

const donePick = "Done"

// pickVendors lets the user choose vendors one at a time until done.
func pickVendors(ctx context.Context, client *apiClient) ([]string, error) {
	resp, err := client.get(ctx, "/vendors")
	if err != nil {
		return nil, err
	}
	var all []rfp.Vendor
	if err := decodeJSON(resp, &all); err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no vendors yet, add some with 'procura vendor add'")
	}

	var picked []string
	remaining := all
	for len(remaining) > 0 {
		items := []string{donePick}
		for _, v := range remaining {
			items = append(items, fmt.Sprintf("%s <%s>", v.Name, v.Email))
		}
		sel := promptui.Select{
			Label: fmt.Sprintf("Add a vendor (%d selected)", len(picked)),
			Items: items,
			Size:  10,
		}
		i, _, err := sel.Run()
		if err != nil {
			return nil, err
		}
		if i == 0 {
			break
		}
		picked = append(picked, remaining[i-1].ID)
		remaining = append(remaining[:i-1:i-1], remaining[i:]...)
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("no vendors selected")
	}
	return picked, nil
}

var rfpCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close an RFP; replies that arrive later are ignored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/rfps/"+url.PathEscape(args[0])+"/close", nil)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Closed RFP %s", args[0])
		return nil
	},
}

var rfpDispatchesCmd = &cobra.Command{
	Use:   "dispatches <id>",
	Short: "List the emails sent for an RFP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/rfps/"+url.PathEscape(args[0])+"/dispatches")
		if err != nil {
			return err
		}
		var ds []storage.Dispatch
		if err := decodeJSON(resp, &ds); err != nil {
			return err
		}
		if len(ds) == 0 {
			fmt.Println("Not sent yet.")
			return nil
		}
		for _, d := range ds {
			fmt.Printf("%s  %s  %s\n", d.SentAt.Local().Format(time.DateTime), colorize(colorCyan, d.VendorID), d.MessageID)
		}
		return nil
	},
}

func init() {
	rfpListCmd.Flags().Int("limit", 20, "maximum number of RFPs to list")
	rfpUpdateCmd.Flags().String("title", "", "new title")
	rfpUpdateCmd.Flags().String("description", "", "new description")
	rfpUpdateCmd.Flags().Float64("budget", 0, "new budget")
	rfpUpdateCmd.Flags().String("deadline", "", "new deadline (YYYY-MM-DD)")
	rfpSendCmd.Flags().StringSlice("vendor", nil, "vendor id or email (repeatable)")

	rfpCmd.AddCommand(rfpListCmd)
	rfpCmd.AddCommand(rfpShowCmd)
	rfpCmd.AddCommand(rfpUpdateCmd)
	rfpCmd.AddCommand(rfpSendCmd)
	rfpCmd.AddCommand(rfpCloseCmd)
	rfpCmd.AddCommand(rfpDispatchesCmd)
}

// --- proposal ---

var proposalCmd = &cobra.Command{
	Use:   "proposal",
	Short: "Inspect and score vendor proposals",
}

var proposalListCmd = &cobra.Command{
	Use:   "list <rfp-id>",
	Short: "List the proposals received for an RFP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/rfps/"+url.PathEscape(args[0])+"/proposals")
		if err != nil {
			return err
		}
		var ps []rfp.Proposal
		if err := decodeJSON(resp, &ps); err != nil {
			return err
		}
		if len(ps) == 0 {
			fmt.Println("No proposals yet.")
			return nil
		}
		renderProposals(os.Stdout, ps)
		return nil
	},
}

func renderProposals(w io.Writer, ps []rfp.Proposal) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range ps {
		total := "-"
		if p.Fields.TotalPrice != nil {
			total = strconv.FormatFloat(*p.Fields.TotalPrice, 'f', 2, 64)
		}
		score := "unscored"
		if p.Evaluation != nil {
			score = colorize(scoreColor(p.Evaluation.OverallScore), strconv.Itoa(p.Evaluation.OverallScore))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", colorize(colorCyan, p.ID), p.VendorID, total, score)
	}
	tw.Flush()
}

var proposalShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a proposal as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/proposals/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var p rfp.Proposal
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(p)
	},
}

var proposalEvaluateCmd = &cobra.Command{
	Use:   "evaluate <id>",
	Short: "Score a proposal against its RFP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/proposals/"+url.PathEscape(args[0])+"/evaluate", nil)
		if err != nil {
			return err
		}
		var e rfp.Evaluation
		if err := decodeJSON(resp, &e); err != nil {
			return err
		}
		renderEvaluation(os.Stdout, e)
		return nil
	},
}

func renderEvaluation(w io.Writer, e rfp.Evaluation) {
	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, e.VendorName), colorize(scoreColor(e.OverallScore), fmt.Sprintf("%d/100", e.OverallScore)))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	c, d := e.Criteria, e.Details
	fmt.Fprintf(tw, "  price\t%d\t%s\n", c.Price, d.PriceReason)
	fmt.Fprintf(tw, "  delivery\t%d\t%s\n", c.Delivery, d.DeliveryReason)
	fmt.Fprintf(tw, "  requirements\t%d\t%s\n", c.Requirements, d.RequirementsReason)
	fmt.Fprintf(tw, "  payment terms\t%d\t%s\n", c.PaymentTerms, d.PaymentReason)
	fmt.Fprintf(tw, "  warranty\t%d\t%s\n", c.Warranty, d.WarrantyReason)
	fmt.Fprintf(tw, "  completeness\t%d\t%s\n", c.Completeness, d.CompletenessReason)
	fmt.Fprintf(tw, "  other\t%d\t%s\n", c.OtherRequirements, d.OtherReason)
	tw.Flush()
}

func init() {
	proposalCmd.AddCommand(proposalListCmd)
	proposalCmd.AddCommand(proposalShowCmd)
	proposalCmd.AddCommand(proposalEvaluateCmd)
}

// --- compare ---

var compareCmd = &cobra.Command{
	Use:   "compare <rfp-id>",
	Short: "Rank the proposals for an RFP and recommend a vendor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/rfps/" + url.PathEscape(args[0]) + "/comparison"
		if force {
			path += "?force=true"
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var res rfp.ComparisonResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if asJSON {
			return printJSON(res)
		}
		renderComparison(os.Stdout, res)
		return nil
	},
}

func renderComparison(w io.Writer, res rfp.ComparisonResult) {
	names := make(map[string]string, len(res.Evaluations))
	for _, e := range res.Evaluations {
		names[e.VendorID] = e.VendorName
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, id := range res.Ranking {
		score := res.Scores[id]
		name := names[id]
		if name == "" {
			name = id
		}
		fmt.Fprintf(tw, "%d.\t%s\t%s\n", i+1, name, colorize(scoreColor(score), strconv.Itoa(score)))
	}
	tw.Flush()

	fmt.Fprintln(w)
	if res.Summary != "" {
		fmt.Fprintln(w, res.Summary)
	}
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Recommendation:"), res.Recommendation)
	if res.Reasoning != "" {
		fmt.Fprintln(w, res.Reasoning)
	}
	if len(res.Concerns) > 0 {
		fmt.Fprintln(w, colorize(colorBold, "Concerns:"))
		for _, c := range res.Concerns {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}
	if len(res.NegotiationPoints) > 0 {
		fmt.Fprintln(w, colorize(colorBold, "Negotiation points:"))
		for _, p := range res.NegotiationPoints {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	}
}

func init() {
	compareCmd.Flags().Bool("force", false, "recompute even if a cached comparison exists")
	compareCmd.Flags().Bool("json", false, "print the raw comparison")
}

// --- vendor ---

var vendorCmd = &cobra.Command{
	Use:   "vendor",
	Short: "Manage the vendor directory",
}

var vendorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vendors",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/vendors")
		if err != nil {
			return err
		}
		var vs []rfp.Vendor
		if err := decodeJSON(resp, &vs); err != nil {
			return err
		}
		if len(vs) == 0 {
			fmt.Println("No vendors found.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, v := range vs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", colorize(colorCyan, v.ID), v.Name, v.Email, v.Contact)
		}
		return tw.Flush()
	},
}

var vendorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a vendor",
	Long: `Add a vendor to the directory.

Examples:
  procura vendor add --name "Acme Supply" --email sales@acme.test --contact "Jo Park"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		contact, _ := cmd.Flags().GetString("contact")
		notes, _ := cmd.Flags().GetString("notes")

		if name == "" || email == "" {
			return fmt.Errorf("--name and --email are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/vendors", rfp.Vendor{Name: name, Email: email, Contact: contact, Notes: notes})
		if err != nil {
			return err
		}
		var v rfp.Vendor
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		printSuccess("Added %s (%s)", v.Name, v.ID)
		return nil
	},
}

var vendorImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import vendors from a YAML file",
	Long: `Import vendors from a YAML file. Vendors are matched by email, so
importing the same file twice updates rather than duplicates.

The file is either a list or has a top-level "vendors" key:

  vendors:
    - name: Acme Supply
      email: sales@acme.test
      contact: Jo Park`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening vendor file: %w", err)
		}
		defer f.Close()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		res, err := vendors.NewDirectory(store).Import(f)
		if err != nil {
			return err
		}
		for _, s := range res.Skipped {
			printWarning("skipped %s", s)
		}
		printSuccess("Imported %d vendor(s)", res.Imported)
		return nil
	},
}

func init() {
	vendorAddCmd.Flags().String("name", "", "vendor name")
	vendorAddCmd.Flags().String("email", "", "address RFPs are sent to")
	vendorAddCmd.Flags().String("contact", "", "contact person")
	vendorAddCmd.Flags().String("notes", "", "free-form notes")

	vendorCmd.AddCommand(vendorListCmd)
	vendorCmd.AddCommand(vendorAddCmd)
	vendorCmd.AddCommand(vendorImportCmd)
}

// --- inbox ---

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Read vendor replies",
}

var inboxCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch new replies and turn them into proposals now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Checking inbox...")
		resp, err := client.post(cmd.Context(), "/inbox/check", nil)
		if err != nil {
			return err
		}
		var sum workflow.InboxSummary
		if err := decodeJSON(resp, &sum); err != nil {
			return err
		}
		printSuccess("%d fetched, %d processed, %d skipped, %d failed", sum.Fetched, sum.Processed, sum.Skipped, sum.Failed)
		return nil
	},
}

func init() {
	inboxCmd.AddCommand(inboxCheckCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
