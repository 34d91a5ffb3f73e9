// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package notify sends mail notifications.
package notify // import "github.com/go-lpc/hittune/internal/notify"

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	mail "gopkg.in/gomail.v2"
)

// Mailer sends mails through an SMTP server.
type Mailer struct {
	Server   string
	Port     int
	User     string
	Password string
	To       []string

	sender mail.Sender // used instead of dialing the server, when set
}

// FromEnv returns a mailer configured from the MAIL_USERNAME,
// MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment
// variables. MAIL_TGTS is a comma-separated list of recipients.
func FromEnv() *Mailer {
	var tgts []string
	for _, v := range strings.Split(os.Getenv("MAIL_TGTS"), ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		tgts = append(tgts, v)
	}
	return &Mailer{
		Server:   os.Getenv("MAIL_SERVER"),
		Port:     atoi(os.Getenv("MAIL_PORT")),
		User:     os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
		To:       tgts,
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// Valid returns an error if the mailer is missing credentials.
func (m *Mailer) Valid() error {
	if m.User == "" || m.Password == "" ||
		m.Server == "" || m.Port == 0 ||
		len(m.To) == 0 {
		return fmt.Errorf("notify: missing credentials")
	}
	return nil
}

// Send sends a plain text mail to all recipients.
func (m *Mailer) Send(subject, body string) error {
	err := m.Valid()
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.User)
	msg.SetHeader("Bcc", m.To...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if m.sender != nil {
		err = mail.Send(m.sender, msg)
	} else {
		dial := mail.NewDialer(m.Server, m.Port, m.User, m.Password)
		dial.TLSConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
		err = dial.DialAndSend(msg)
	}
	if err != nil {
		return fmt.Errorf("notify: could not send mail: %w", err)
	}
	return nil
}
