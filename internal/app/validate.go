package app

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"payguard/internal/policy"
)

// Validate parses a policy document and prints a summary of its groups.
// An empty path falls back to the configured policy source.
func (a *App) Validate(path string) error {
	var (
		doc *policy.Document
		err error
	)
	switch {
	case path != "":
		doc, err = policy.LoadFile(path)
	case a.Config.Policy.Inline != "":
		doc, err = policy.ParseDocument([]byte(a.Config.Policy.Inline))
	case a.Config.Policy.Path != "":
		doc, err = policy.LoadFile(a.Config.Policy.Path)
	default:
		return errors.New("no policy document given; pass a path or configure policy.path")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "policy document is valid: %d group(s)\n", len(doc.PolicyGroups))

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Group\tOutgoing\tIncoming\tRate limit\tSender lists\tRecipient lists")

	for _, group := range doc.PolicyGroups {
		rate := "-"
		if group.RateLimits != nil {
			rate = fmt.Sprintf("%d per %s", group.RateLimits.MaxPayments, group.RateLimits.Window())
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			sanitizeInline(group.Name),
			describeLimitSet(group.OutgoingLimits),
			describeLimitSet(group.IncomingLimits),
			rate,
			describeLists(len(group.AllowedSenders), len(group.BlockedSenders)),
			describeLists(len(group.AllowedRecipients), len(group.BlockedRecipients)),
		)
	}

	writer.Flush()
	return nil
}

func describeLimitSet(set *policy.LimitSet) string {
	if set == nil {
		return "-"
	}
	scoped := len(set.PerSender) + len(set.PerTarget) + len(set.PerEndpoint)
	if set.Global != nil {
		if scoped > 0 {
			return fmt.Sprintf("global + %d scoped", scoped)
		}
		return "global"
	}
	if scoped > 0 {
		return fmt.Sprintf("%d scoped", scoped)
	}
	return "-"
}

func describeLists(allowed, blocked int) string {
	if allowed == 0 && blocked == 0 {
		return "-"
	}
	return fmt.Sprintf("%d allowed, %d blocked", allowed, blocked)
}
