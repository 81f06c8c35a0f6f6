// Package notify emails a summary of the playlists a run published.
package notify

import (
	"bytes"
	"fmt"
	"html"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/ademuri/playlist-builder/internal/config"
	"github.com/ademuri/playlist-builder/internal/store"
)

const senderName = "playlist-builder"

// Summary renders published playlists as a text table.
func Summary(published []store.Published) (string, error) {
	out := new(bytes.Buffer)
	table := tablewriter.NewWriter(out)
	table.Header([]string{"Name", "Tracks", "Energy", "Mood"})
	for _, p := range published {
		if err := table.Append([]string{
			p.Name,
			strconv.Itoa(p.Tracks),
			strconv.FormatFloat(p.Energy, 'f', 2, 64),
			strconv.FormatFloat(p.Valence, 'f', 2, 64),
		}); err != nil {
			return "", fmt.Errorf("rendering table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}
	return out.String(), nil
}

// Message builds the summary email for a run built from source.
func Message(cfg config.Notify, source string, published []store.Published) (*mail.SGMailV3, error) {
	body, err := Summary(published)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Published %d playlists from %s.\n\n%s", len(published), source, body)
	htmlBody := "<pre>" + html.EscapeString(text) + "</pre>"

	from := mail.NewEmail(senderName, cfg.From)
	to := mail.NewEmail(cfg.To, cfg.To)
	subject := fmt.Sprintf("Published %d playlists", len(published))
	return mail.NewSingleEmail(from, subject, to, text, htmlBody), nil
}

// Send emails the summary through SendGrid.
func Send(cfg config.Notify, source string, published []store.Published) error {
	message, err := Message(cfg, source, published)
	if err != nil {
		return err
	}
	client := sendgrid.NewSendClient(cfg.SendgridAPIKey)
	resp, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sending email: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// Mailer sends run summaries to one recipient.
type Mailer struct {
	Config config.Notify
}

func (m Mailer) Notify(source string, published []store.Published) error {
	return Send(m.Config, source, published)
}
