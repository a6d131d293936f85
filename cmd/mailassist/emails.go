package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/daviddao/mailassist/internal/display"
	"github.com/daviddao/mailassist/internal/gmail"
	"github.com/daviddao/mailassist/internal/types"
	"github.com/spf13/cobra"
)

var (
	listMax       int64
	listLabels    []string
	showNoBody    bool
	showParts     bool
	composeTo     string
	composeSubj   string
	composeBody   string
	composeThread string
	genTemplate   string
	genInstr      string
	replyDraft    bool
)

// emailsCmd is the parent command for mailbox operations.
var emailsCmd = &cobra.Command{
	Use:   "emails",
	Short: "Mailbox operations (list, show, send, draft, reply, summarize)",
}

var emailsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent messages",
	Example: `  mailassist emails list
  mailassist emails list -n 25 --label UNREAD --label IMPORTANT
  mailassist emails list --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := mailbox(cmd.Context())
		if err != nil {
			return err
		}
		emails := client.List(cmd.Context(), listMax, listLabels...)

		if jsonOutput {
			return writeJSON(cmd, emails)
		}
		w := cmd.OutOrStdout()
		if len(emails) == 0 {
			fmt.Fprintln(w, "No messages found.")
			return nil
		}
		if !quietFlag {
			labels := listLabels
			if len(labels) == 0 {
				labels = []string{types.DefaultLabel}
			}
			display.Header(w, fmt.Sprintf("%d message(s) in %s", len(emails), strings.Join(labels, ", ")))
			fmt.Fprintln(w)
		}
		for _, e := range emails {
			display.EmailLine(w, e)
		}
		return nil
	},
}

var emailsShowCmd = &cobra.Command{
	Use:   "show MESSAGE_ID",
	Short: "Display a message with its body",
	Example: `  mailassist emails show 18d5a7b3c4e5f6a7
  mailassist emails show 18d5a7b3c4e5f6a7 --parts
  mailassist emails show 18d5a7b3c4e5f6a7 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := mailbox(cmd.Context())
		if err != nil {
			return err
		}
		email := client.Get(cmd.Context(), args[0])
		if email == nil {
			return fmt.Errorf("message %s not found", args[0])
		}

		if jsonOutput {
			return writeJSON(cmd, email)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "From: %s\n", email.Header("From"))
		fmt.Fprintf(w, "To: %s\n", email.Header("To"))
		if cc := email.Header("Cc"); cc != "" {
			fmt.Fprintf(w, "Cc: %s\n", cc)
		}
		fmt.Fprintf(w, "Subject: %s\n", display.Bold.Render(email.Header("Subject")))
		fmt.Fprintf(w, "Date: %s\n", email.Header("Date"))
		fmt.Fprintf(w, "Thread: %s\n", email.ThreadID)
		if labels := display.LabelList(email.LabelIDs); labels != "" {
			fmt.Fprintf(w, "Labels: %s\n", labels)
		}
		if atts := gmail.Attachments(email.Payload); len(atts) > 0 {
			fmt.Fprintln(w, "Attachments:")
			for _, a := range atts {
				fmt.Fprintf(w, "  - %s (%s, %d bytes)\n", a.Filename, a.MimeType, a.Size)
			}
		}
		if showParts {
			fmt.Fprintln(w)
			display.SubHeader(w, "MIME structure")
			display.PartTree(w, email.Payload)
		}

		if showNoBody {
			return nil
		}
		fmt.Fprintln(w)
		body, ok := gmail.ExtractBody(email.Payload)
		if !ok {
			body = display.Dim.Render("(no text body; snippet) ") + email.Snippet
		}
		display.Body(w, body, 0)
		return nil
	},
}

var emailsSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a plain text message",
	Example: `  mailassist emails send --to bob@example.com --subject "Lunch" --body "Noon works."
  mailassist emails send --to bob@example.com --subject "Re: Lunch" --body "See you" --thread 18d5a7b3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := mailbox(cmd.Context())
		if err != nil {
			return err
		}
		sent, err := client.Send(cmd.Context(), composeRequest())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, sent)
		}
		if !quietFlag {
			display.SuccessMsg(cmd.OutOrStdout(), "Sent message %s (thread %s)", sent.Id, sent.ThreadId)
		}
		return nil
	},
}

var emailsDraftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Save a plain text message as a draft",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := mailbox(cmd.Context())
		if err != nil {
			return err
		}
		draft, err := client.CreateDraft(cmd.Context(), composeRequest())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, draft)
		}
		if !quietFlag {
			display.SuccessMsg(cmd.OutOrStdout(), "Created draft %s", draft.Id)
		}
		return nil
	},
}

var emailsReplyCmd = &cobra.Command{
	Use:   "reply MESSAGE_ID",
	Short: "Generate a reply to a message",
	Example: `  mailassist emails reply 18d5a7b3c4e5f6a7
  mailassist emails reply 18d5a7b3c4e5f6a7 -i "decline politely" --draft`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, email, body, err := loadForGeneration(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		asst, err := newAssistant()
		if err != nil {
			return err
		}
		reply, err := asst.AutoReply(cmd.Context(), genTemplate, body, genInstr)
		if err != nil {
			return err
		}

		out := types.AutoReplyResponse{Reply: reply}
		if !replyDraft {
			if jsonOutput {
				return writeJSON(cmd, out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		}

		draft, err := client.CreateDraft(cmd.Context(), types.SendRequest{
			To:       replyTo(email),
			Subject:  replySubject(email.Header("Subject")),
			Body:     reply,
			ThreadID: email.ThreadID,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, struct {
				types.AutoReplyResponse
				DraftID string `json:"draft_id"`
			}{out, draft.Id})
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		if !quietFlag {
			fmt.Fprintln(cmd.OutOrStdout())
			display.SuccessMsg(cmd.OutOrStdout(), "Saved as draft %s in thread %s", draft.Id, email.ThreadID)
		}
		return nil
	},
}

var emailsSummarizeCmd = &cobra.Command{
	Use:   "summarize MESSAGE_ID",
	Short: "Summarize a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, email, body, err := loadForGeneration(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		asst, err := newAssistant()
		if err != nil {
			return err
		}
		summary, err := asst.Summarize(cmd.Context(), genTemplate, body, genInstr)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, types.SummaryResponse{EmailID: email.ID, Summary: summary})
		}
		if !quietFlag {
			display.SubHeader(cmd.OutOrStdout(), email.Header("Subject"))
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary)
		return nil
	},
}

// mailbox opens an authenticated Gmail client.
func mailbox(ctx context.Context) (*gmail.Client, error) {
	provider, err := newProvider()
	if err != nil {
		return nil, err
	}
	svc, err := provider.Service(ctx)
	if err != nil {
		return nil, err
	}
	return gmail.New(svc), nil
}

func loadForGeneration(ctx context.Context, id string) (*gmail.Client, *types.EmailMessage, string, error) {
	client, err := mailbox(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	email := client.Get(ctx, id)
	if email == nil {
		return nil, nil, "", fmt.Errorf("message %s not found", id)
	}
	body, _ := gmail.ExtractBody(email.Payload)
	return client, email, body, nil
}

func composeRequest() types.SendRequest {
	return types.SendRequest{
		To:       composeTo,
		Subject:  composeSubj,
		Body:     composeBody,
		ThreadID: composeThread,
	}
}

// replyTo prefers Reply-To over From, as mail clients do.
func replyTo(e *types.EmailMessage) string {
	if rt := e.Header("Reply-To"); rt != "" {
		return rt
	}
	return e.Header("From")
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	emailsListCmd.Flags().Int64VarP(&listMax, "max-results", "n", 10, "Maximum messages to list")
	emailsListCmd.Flags().StringSliceVarP(&listLabels, "label", "l", nil, "Label to list (repeatable, default INBOX)")

	emailsShowCmd.Flags().BoolVar(&showNoBody, "no-body", false, "Hide the message body")
	emailsShowCmd.Flags().BoolVar(&showParts, "parts", false, "Print the MIME part tree")

	for _, c := range []*cobra.Command{emailsSendCmd, emailsDraftCmd} {
		c.Flags().StringVar(&composeTo, "to", "", "Recipient address")
		c.Flags().StringVarP(&composeSubj, "subject", "s", "", "Subject line")
		c.Flags().StringVarP(&composeBody, "body", "b", "", "Plain text body")
		c.Flags().StringVar(&composeThread, "thread", "", "Thread ID to attach the message to")
		c.MarkFlagRequired("to")
		c.MarkFlagRequired("subject")
		c.MarkFlagRequired("body")
	}

	for _, c := range []*cobra.Command{emailsReplyCmd, emailsSummarizeCmd} {
		c.Flags().StringVarP(&genTemplate, "template", "t", "", "Prompt template ID (default: built-in)")
		c.Flags().StringVarP(&genInstr, "instructions", "i", "", "Additional instructions for the model")
	}
	emailsReplyCmd.Flags().BoolVar(&replyDraft, "draft", false, "Save the generated reply as a draft in the thread")

	emailsCmd.AddCommand(emailsListCmd, emailsShowCmd, emailsSendCmd, emailsDraftCmd, emailsReplyCmd, emailsSummarizeCmd)
	rootCmd.AddCommand(emailsCmd)
}
