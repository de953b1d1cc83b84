package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/3Eeeecho/go-grocerylist/internal/config"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Invite 分享邀请邮件的内容
type Invite struct {
	To          string
	ListName    string
	ShareURL    string
	Role        string // viewer / editor / admin
	Permissions string // 例如 "View items, Add items"
}

// Mailer 通过 SMTP 发送分享邀请
type Mailer struct {
	from string
	send func(msgs ...*gomail.Message) error
}

// New 使用 SMTP 配置创建 Mailer，每次发送都会建立新连接
func New(cfg config.MailConfig) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{from: cfg.From, send: d.DialAndSend}
}

// NewWithSender 使用自定义 Sender，测试中可传入 gomail.SendFunc
func NewWithSender(from string, s gomail.Sender) *Mailer {
	return &Mailer{
		from: from,
		send: func(msgs ...*gomail.Message) error { return gomail.Send(s, msgs...) },
	}
}

var inviteTmpl = template.Must(template.New("invite").Parse(`<p>You're invited to join the grocery list <b>{{.ListName}}</b> as {{.Role}}.</p>
<p>You will be able to: {{.Permissions}}.</p>
<p><a href="{{.ShareURL}}">Join the list</a></p>`))

func (m *Mailer) SendShareInvite(ctx context.Context, inv Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var html bytes.Buffer
	if err := inviteTmpl.Execute(&html, inv); err != nil {
		return fmt.Errorf("渲染邀请邮件失败: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", inv.To)
	msg.SetHeader("Subject", fmt.Sprintf("Join the grocery list %q", inv.ListName))
	msg.SetBody("text/plain", fmt.Sprintf("You're invited to join %q (%s). Open %s to join.", inv.ListName, inv.Permissions, inv.ShareURL))
	msg.AddAlternative("text/html", html.String())

	if err := m.send(msg); err != nil {
		logger.Error("SendShareInvite: 发送邮件失败", zap.String("to", inv.To), zap.Error(err))
		return fmt.Errorf("发送邀请邮件失败: %w", err)
	}
	logger.Info("SendShareInvite: 邀请邮件已发送", zap.String("to", inv.To))
	return nil
}
