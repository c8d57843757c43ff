// Package mail はアカウント関連メールの送信を提供する。
// SMTPが未設定の環境（ローカル開発等）ではログ出力で代替する。
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gomail "gopkg.in/gomail.v2"
)

// Sender はメッセージ送信の下位インターフェース。gomail.Dialerが実装する。
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer はSMTP経由でメールを送信する。
type SMTPMailer struct {
	sender Sender
	from   string
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		sender: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// NewSMTPMailerWithSender はテスト用に送信実装を差し替えたSMTPMailerを生成する。
func NewSMTPMailerWithSender(sender Sender, from string) *SMTPMailer {
	return &SMTPMailer{sender: sender, from: from}
}

// SendOTP はワンタイムパスコードを通知する。
func (m *SMTPMailer) SendOTP(ctx context.Context, to, fullName, code string, expiresAt time.Time) error {
	subject := "【予約システム】ログイン確認コード"
	body := fmt.Sprintf(
		"%s 様\n\nログイン確認コード: %s\n\nこのコードの有効期限は %s までです。\n心当たりのない場合はこのメールを破棄してください。\n",
		fullName, code, expiresAt.Local().Format("15:04"),
	)
	return m.send(ctx, to, subject, body)
}

// SendWelcome は登録完了を通知する。
func (m *SMTPMailer) SendWelcome(ctx context.Context, to, fullName string) error {
	subject := "【予約システム】登録完了のお知らせ"
	body := fmt.Sprintf(
		"%s 様\n\nアカウントの登録が完了しました。\nログイン後、プロフィールの設定をお願いします。\n",
		fullName,
	)
	return m.send(ctx, to, subject, body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// LogMailer は実送信の代わりにログへ書き出す開発用の実装。
// コード自体はログに残さない（桁数のみ）。
type LogMailer struct{}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// SendOTP はワンタイムパスコードの発行をログに残す。
func (m *LogMailer) SendOTP(_ context.Context, to, _, code string, expiresAt time.Time) error {
	slog.Info("otp mail suppressed (smtp not configured)",
		slog.String("to", to),
		slog.Int("code_length", len(code)),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}

// SendWelcome は登録完了通知をログに残す。
func (m *LogMailer) SendWelcome(_ context.Context, to, _ string) error {
	slog.Info("welcome mail suppressed (smtp not configured)",
		slog.String("to", to),
	)
	return nil
}
