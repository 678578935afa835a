// Package mail delivers the account emails the engine asks for: the
// verification link, the password reset link and the password-changed
// notice.
//
// Mailer implements hubauth.Notifier. It renders a text and an HTML body for
// each message and hands the result to a Sender on a background queue, so
// request handlers never wait on SMTP. SMTPSender talks to a relay through
// net/smtp; LogSender writes the rendered message to a slog.Logger and is
// meant for local development.
package mail
