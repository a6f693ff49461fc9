package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/sirupsen/logrus"
)

var errNoTransport = errors.New("smtp transport not configured")

// EmailService composes templated notification emails and hands them to a Transport.
type EmailService struct {
	transport Transport
	baseURL   string
	log       logrus.FieldLogger
}

// NewEmailService returns an email sender. A nil transport leaves email disabled:
// every send reports failure, which matches an unreachable relay.
func NewEmailService(transport Transport, baseURL string, log logrus.FieldLogger) *EmailService {
	if transport == nil {
		log.Warn("SMTP: no transport configured, email notifications disabled")
	}
	return &EmailService{
		transport: transport,
		baseURL:   strings.TrimRight(baseURL, "/"),
		log:       log,
	}
}

// SendEmail delivers one message and reports whether the transport accepted it.
func (s *EmailService) SendEmail(ctx context.Context, to, subject, html, text string) bool {
	return s.send(ctx, Message{To: to, Subject: subject, HTML: html, Text: text}) == nil
}

func (s *EmailService) send(ctx context.Context, msg Message) error {
	log := s.log.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject})
	if msg.To == "" {
		log.Warn("SMTP: recipient has no email address")
		return errors.New("missing recipient address")
	}
	if s.transport == nil {
		log.Warn("SMTP: email not sent, transport disabled")
		return errNoTransport
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		log.WithError(err).Error("SMTP: failed to send email")
		return err
	}
	log.Debug("SMTP: email sent")
	return nil
}

// sendAll sends one rendered message per recipient concurrently. The result
// slice is in recipient order.
func (s *EmailService) sendAll(ctx context.Context, recipients []models.UserRef, render func(models.UserRef) (Message, error)) []bool {
	results := make([]bool, len(recipients))
	var wg sync.WaitGroup
	for i, r := range recipients {
		wg.Add(1)
		go func(i int, r models.UserRef) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					s.log.WithField("to", r.Email).Errorf("SMTP: panic while sending: %v", p)
				}
			}()

			msg, err := render(r)
			if err != nil {
				s.log.WithError(err).WithField("to", r.Email).Error("SMTP: failed to render email")
				return
			}
			results[i] = s.send(ctx, msg) == nil
		}(i, r)
	}
	wg.Wait()
	return results
}

type reminderView struct {
	Name      string
	Title     string
	Message   string
	TaskTitle string
	DueDate   string
	Priority  string
	Link      string
}

// SendReminderEmail sends a reminder, with optional task context, to each recipient.
func (s *EmailService) SendReminderEmail(ctx context.Context, reminder *models.Reminder, task *models.Task, recipients []models.UserRef) []bool {
	view := reminderView{
		Title:   reminder.Title,
		Message: reminder.Message,
	}
	if view.Title == "" {
		view.Title = "Reminder"
	}
	if task != nil {
		view.TaskTitle = task.Title
		view.Priority = task.PriorityLabel()
		if task.DueDate != nil {
			view.DueDate = task.DueDate.Format("Mon, Jan 2 2006 15:04")
		}
		if task.ProjectID != nil {
			view.Link = fmt.Sprintf("%s/projects/%s/tasks/%s", s.baseURL, task.ProjectID, task.ID)
		}
	} else if reminder.ProjectID != nil {
		view.Link = fmt.Sprintf("%s/projects/%s", s.baseURL, reminder.ProjectID)
	}

	subject := "Reminder: " + view.Title
	return s.sendAll(ctx, recipients, func(r models.UserRef) (Message, error) {
		v := view
		v.Name = r.Name
		return s.render(r, subject, "reminder", v)
	})
}

type escalationView struct {
	Name           string
	ProjectName    string
	Reason         string
	Level          string
	AdditionalInfo string
	Link           string
}

// SendEscalationEmail notifies each recipient that a project was escalated.
func (s *EmailService) SendEscalationEmail(ctx context.Context, reason, level string, project *models.Project, recipients []models.UserRef, additionalInfo string) []bool {
	view := escalationView{
		ProjectName:    project.Name,
		Reason:         reason,
		Level:          level,
		AdditionalInfo: additionalInfo,
		Link:           fmt.Sprintf("%s/projects/%s", s.baseURL, project.ID),
	}
	subject := fmt.Sprintf("[Escalation %s] %s", level, project.Name)
	return s.sendAll(ctx, recipients, func(r models.UserRef) (Message, error) {
		v := view
		v.Name = r.Name
		return s.render(r, subject, "escalation", v)
	})
}

type digestView struct {
	Name     string
	Snapshot *models.DigestSnapshot
	Link     string
}

// SendDigestEmail sends the daily digest to one user.
func (s *EmailService) SendDigestEmail(ctx context.Context, user models.UserRef, snapshot *models.DigestSnapshot) bool {
	subject := fmt.Sprintf("Your daily digest: %d due today, %d overdue",
		len(snapshot.TodayTasks), len(snapshot.OverdueTasks))
	msg, err := s.render(user, subject, "digest", digestView{
		Name:     user.Name,
		Snapshot: snapshot,
		Link:     s.baseURL + "/dashboard",
	})
	if err != nil {
		s.log.WithError(err).WithField("to", user.Email).Error("SMTP: failed to render digest")
		return false
	}
	return s.send(ctx, msg) == nil
}

func (s *EmailService) render(r models.UserRef, subject, name string, data interface{}) (Message, error) {
	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name, data); err != nil {
		return Message{}, fmt.Errorf("rendering %s html: %w", name, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, name, data); err != nil {
		return Message{}, fmt.Errorf("rendering %s text: %w", name, err)
	}
	return Message{
		To:      r.Email,
		ToName:  r.Name,
		Subject: subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

var htmlTemplates = htmltemplate.Must(htmltemplate.New("email").Parse(`
{{define "reminder"}}<p>Hi {{.Name}},</p>
<h2>{{.Title}}</h2>
{{if .Message}}<p>{{.Message}}</p>{{end}}
{{if .TaskTitle}}<table>
<tr><td>Task</td><td>{{.TaskTitle}}</td></tr>
{{if .DueDate}}<tr><td>Due</td><td>{{.DueDate}}</td></tr>{{end}}
<tr><td>Priority</td><td>{{.Priority}}</td></tr>
</table>{{end}}
{{if .Link}}<p><a href="{{.Link}}">Open in PartnerHub</a></p>{{end}}{{end}}

{{define "escalation"}}<p>Hi {{.Name}},</p>
<h2>Escalation ({{.Level}}): {{.ProjectName}}</h2>
<p>{{.Reason}}</p>
{{if .AdditionalInfo}}<p>{{.AdditionalInfo}}</p>{{end}}
<p><a href="{{.Link}}">Review the project</a></p>{{end}}

{{define "digest"}}<p>Good morning {{.Name}},</p>
{{with .Snapshot}}
{{if .TodayTasks}}<h3>Due today</h3><ul>{{range .TodayTasks}}<li>{{.Title}} ({{.PriorityLabel}})</li>{{end}}</ul>{{end}}
{{if .OverdueTasks}}<h3>Overdue</h3><ul>{{range .OverdueTasks}}<li>{{.Title}}: {{.DaysOverdue}} day(s) overdue</li>{{end}}</ul>{{end}}
{{if .UnreadNotifications}}<h3>Unread notifications</h3><ul>{{range .UnreadNotifications}}<li>{{.Title}}</li>{{end}}</ul>{{end}}
<p>{{.Stats.CompletedTasks}} of {{.Stats.TotalTasks}} tasks completed ({{.Stats.CompletionRate}}%).</p>
{{end}}
<p><a href="{{.Link}}">Open your dashboard</a></p>{{end}}
`))

var textTemplates = texttemplate.Must(texttemplate.New("email").Parse(`
{{define "reminder"}}Hi {{.Name}},

{{.Title}}
{{if .Message}}
{{.Message}}
{{end}}{{if .TaskTitle}}
Task: {{.TaskTitle}}{{if .DueDate}}
Due: {{.DueDate}}{{end}}
Priority: {{.Priority}}
{{end}}{{if .Link}}
{{.Link}}
{{end}}{{end}}

{{define "escalation"}}Hi {{.Name}},

Escalation ({{.Level}}): {{.ProjectName}}

{{.Reason}}
{{if .AdditionalInfo}}
{{.AdditionalInfo}}
{{end}}
{{.Link}}
{{end}}

{{define "digest"}}Good morning {{.Name}},
{{with .Snapshot}}{{if .TodayTasks}}
Due today:
{{range .TodayTasks}}- {{.Title}} ({{.PriorityLabel}})
{{end}}{{end}}{{if .OverdueTasks}}
Overdue:
{{range .OverdueTasks}}- {{.Title}}: {{.DaysOverdue}} day(s) overdue
{{end}}{{end}}{{if .UnreadNotifications}}
Unread notifications:
{{range .UnreadNotifications}}- {{.Title}}
{{end}}{{end}}
{{.Stats.CompletedTasks}} of {{.Stats.TotalTasks}} tasks completed ({{.Stats.CompletionRate}}%).
{{end}}
{{.Link}}
{{end}}
`))
