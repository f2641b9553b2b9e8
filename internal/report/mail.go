package report

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/codebypatrickleung/lakeshift-cli/internal/common"
	"github.com/codebypatrickleung/lakeshift-cli/internal/config"
	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
	"github.com/codebypatrickleung/lakeshift-cli/internal/miglog"
)

// maxErrorLength caps the error cell in the email's per-dashboard table.
const maxErrorLength = 100

// Mailer sends the migration summary email over SMTP with STARTTLS.
type Mailer struct {
	config *config.Config
	logger *logger.Logger
}

// NewMailer creates a mailer from the run configuration.
func NewMailer(cfg *config.Config, log *logger.Logger) *Mailer {
	return &Mailer{config: cfg, logger: log}
}

// emailData is the template context for the summary email.
type emailData struct {
	Stats       stats
	ShowPublish bool
	ShowDelete  bool
	Rows        []emailRow
	LogFile     string
}

type emailRow struct {
	LegacyID   string
	Name       string
	Path       string
	LakeviewID string
	Migrated   bool
	Error      string
}

const htmlBodyTemplate = `<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; }
        table { border-collapse: collapse; width: 100%; margin: 20px 0; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #4CAF50; color: white; }
        .success { color: green; }
        .error { color: red; }
        .summary { background-color: #f2f2f2; padding: 15px; margin: 20px 0; }
    </style>
</head>
<body>
    <h2>Dashboard Migration Summary</h2>
    <div class="summary">
        <h3>Migration Statistics</h3>
        <ul>
            <li><strong>Total Dashboards:</strong> {{.Stats.Total}}</li>
            <li><strong class="success">Successfully Migrated:</strong> {{.Stats.Migrated}}</li>
            <li><strong class="error">Failed Migrations:</strong> {{.Stats.Failed}}</li>
            {{if .ShowPublish}}<li><strong>Published:</strong> {{.Stats.Published}}</li>{{end}}
            {{if .ShowDelete}}<li><strong>Deleted Legacy:</strong> {{.Stats.Deleted}}</li>{{end}}
        </ul>
    </div>
    <h3>Migration Details</h3>
    <table>
        <tr>
            <th>Legacy ID</th>
            <th>Name</th>
            <th>Path</th>
            <th>Lakeview ID</th>
            <th>Status</th>
            <th>Error</th>
        </tr>
        {{range .Rows}}
        <tr>
            <td>{{.LegacyID}}</td>
            <td>{{.Name}}</td>
            <td>{{.Path}}</td>
            <td>{{.LakeviewID}}</td>
            {{if .Migrated}}<td class="success">Migrated</td>{{else}}<td class="error">Failed</td>{{end}}
            <td>{{.Error}}</td>
        </tr>
        {{end}}
    </table>
    <p><em>Full details available in log file: {{.LogFile}}</em></p>
</body>
</html>`

// SendSummary renders and sends the summary email. Missing recipients or
// credentials cause a logged skip; only a transport failure is returned, and
// the caller treats that as non-fatal too.
func (m *Mailer) SendSummary(records []miglog.Record) error {
	if m.config.EmailTo == "" {
		m.logger.Warning("--send-email specified but --email-to not provided. Skipping email.")
		return nil
	}
	if len(records) == 0 {
		m.logger.Warning("No dashboards to include in email summary")
		return nil
	}
	if m.config.SMTPUsername == "" || m.config.SMTPPassword == "" {
		m.logger.Error(
			"SMTP credentials not provided. Set SMTP_USERNAME and SMTP_PASSWORD env vars " +
				"or use --smtp-username and --smtp-password.")
		return nil
	}
	if m.config.EmailFrom == "" {
		m.logger.Error("Email from address is required. Set EMAIL_FROM or use --email-from.")
		return nil
	}

	data := emailData{
		Stats:       computeStats(records),
		ShowPublish: m.config.Publish,
		ShowDelete:  m.config.DeleteLegacy,
		LogFile:     m.config.LogFile,
	}
	for i := range records {
		r := &records[i]
		data.Rows = append(data.Rows, emailRow{
			LegacyID:   r.LegacyID,
			Name:       r.Name,
			Path:       r.Path,
			LakeviewID: r.LakeviewID,
			Migrated:   r.Migrated,
			Error:      common.Truncate(r.Error, maxErrorLength),
		})
	}

	htmlBody, err := renderHTMLBody(data)
	if err != nil {
		return fmt.Errorf("failed to render email body: %w", err)
	}
	textBody := renderTextBody(data)
	subject := fmt.Sprintf("Dashboard Migration Summary - %d/%d migrated", data.Stats.Migrated, data.Stats.Total)

	recipients := common.SplitAndTrim(m.config.EmailTo)
	msg := buildMessage(m.config.EmailFrom, recipients, subject, textBody, htmlBody)

	addr := fmt.Sprintf("%s:%d", m.config.SMTPServer, m.config.SMTPPort)
	auth := smtp.PlainAuth("", m.config.SMTPUsername, m.config.SMTPPassword, m.config.SMTPServer)
	if err := m.sendMailTLS(addr, auth, m.config.EmailFrom, recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.logger.Successf("Email summary sent to %s", m.config.EmailTo)
	return nil
}

func renderHTMLBody(data emailData) (string, error) {
	tmpl, err := template.New("summary").Parse(htmlBodyTemplate)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderTextBody is the plain-text fallback carrying the key statistics.
func renderTextBody(data emailData) string {
	var b strings.Builder
	b.WriteString("Dashboard Migration Summary\n\n")
	fmt.Fprintf(&b, "Total Dashboards: %d\n", data.Stats.Total)
	fmt.Fprintf(&b, "Successfully Migrated: %d\n", data.Stats.Migrated)
	fmt.Fprintf(&b, "Failed Migrations: %d\n", data.Stats.Failed)
	if data.ShowPublish {
		fmt.Fprintf(&b, "Published: %d\n", data.Stats.Published)
	}
	if data.ShowDelete {
		fmt.Fprintf(&b, "Deleted Legacy: %d\n", data.Stats.Deleted)
	}
	fmt.Fprintf(&b, "\nFull details available in log file: %s\n", data.LogFile)
	b.WriteString("\nSee HTML version for the per-dashboard table.\n")
	return b.String()
}

// buildMessage assembles a multipart/alternative message with a plain-text
// part and an HTML part.
func buildMessage(from string, to []string, subject, textBody, htmlBody string) []byte {
	var buf bytes.Buffer
	alt := multipart.NewWriter(&buf)

	headers := []string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"Date: " + time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="` + alt.Boundary() + `"`,
	}
	buf.WriteString(strings.Join(headers, "\r\n") + "\r\n\r\n")

	textPart, _ := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	fmt.Fprint(textPart, textBody)
	htmlPart, _ := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	fmt.Fprint(htmlPart, htmlBody)
	alt.Close()

	return buf.Bytes()
}

// sendMailTLS sends the message over SMTP with STARTTLS.
func (m *Mailer) sendMailTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: m.config.SMTPServer}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range to {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open message body: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close message body: %w", err)
	}
	return client.Quit()
}
