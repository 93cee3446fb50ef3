package mail

import (
	"context"
	"fmt"
)

// Service composes the account emails and hands them to a Sender.
type Service struct {
	sender Sender
	from   string
}

func NewService(sender Sender, from string) *Service {
	return &Service{sender: sender, from: from}
}

// SendPasswordReset mails a reset link to the account owner.
func (s *Service) SendPasswordReset(ctx context.Context, to, name, link string) error {
	body := fmt.Sprintf(`Hello %s,

You requested a password reset. Follow the link below to choose a new password:

%s

If you did not request this, you can ignore this email.
`, greetingName(name, to), link)

	return s.sender.Send(ctx, Message{From: s.from, To: to, Subject: "Password reset", Body: body})
}

// SendVerification mails an address verification link after sign-up.
func (s *Service) SendVerification(ctx context.Context, to, name, link string) error {
	body := fmt.Sprintf(`Hello %s,

Thanks for signing up. Please confirm your email address:

%s
`, greetingName(name, to), link)

	return s.sender.Send(ctx, Message{From: s.from, To: to, Subject: "Verify your email address", Body: body})
}

func greetingName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
