// Package account describes the mailbox accounts outreach is sent from.
package account

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
)

// Security is the transport security mode of an account's servers.
type Security string

const (
	SecurityTLS      Security = "tls"      // implicit TLS
	SecurityStartTLS Security = "starttls" // plaintext upgraded with STARTTLS
	SecurityNone     Security = "none"
)

var ErrUnknownAccount = fmt.Errorf("unknown sending account")
var ErrNoAccounts = fmt.Errorf("account directory is empty")

// Account is a mailbox capable of sending over SMTP and being inspected over IMAP.
type Account struct {
	Address    string
	Username   string
	Password   string
	SMTPHost   string
	SMTPPort   int
	IMAPHost   string
	IMAPPort   int
	Security   Security
	SentFolder string
}

// Domain returns the part of the address after '@'.
func (a *Account) Domain() string {
	if i := strings.LastIndexByte(a.Address, '@'); i >= 0 {
		return a.Address[i+1:]
	}
	return "localhost"
}

// Login returns the username, falling back to the address.
func (a *Account) Login() string {
	if a.Username != "" {
		return a.Username
	}
	return a.Address
}

// IsGmail reports whether the account belongs to the Gmail provider family.
func (a *Account) IsGmail() bool {
	host := strings.ToLower(a.IMAPHost)
	domain := strings.ToLower(a.Domain())
	return strings.Contains(host, "gmail") || strings.Contains(host, "googlemail") ||
		domain == "gmail.com" || domain == "googlemail.com"
}

// SentMailbox returns the configured sent folder or the provider default.
func (a *Account) SentMailbox() string {
	if a.SentFolder != "" {
		return a.SentFolder
	}
	return DefaultSentFolder(a)
}

// DefaultSentFolder returns the conventional sent folder of the account's provider.
func DefaultSentFolder(a *Account) string {
	if a.IsGmail() {
		return "[Gmail]/Sent Mail"
	}
	return "INBOX.Sent"
}

// Directory is the read-only set of configured accounts, keyed by address.
type Directory struct {
	accounts map[string]*Account
}

// NewDirectory indexes accounts by lower-cased address. Duplicate addresses
// are rejected.
func NewDirectory(accounts []*Account) (*Directory, error) {
	d := &Directory{accounts: make(map[string]*Account, len(accounts))}
	for _, a := range accounts {
		key := strings.ToLower(strings.TrimSpace(a.Address))
		if key == "" {
			return nil, fmt.Errorf("account without address")
		}
		if _, exists := d.accounts[key]; exists {
			return nil, fmt.Errorf("duplicate account %s", a.Address)
		}
		d.accounts[key] = a
	}
	return d, nil
}

// Lookup returns the account for address.
func (d *Directory) Lookup(address string) (*Account, error) {
	a, ok := d.accounts[strings.ToLower(strings.TrimSpace(address))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}
	return a, nil
}

// Pick returns the preferred account when set, otherwise a random one.
func (d *Directory) Pick(preferred string) (*Account, error) {
	if preferred != "" {
		return d.Lookup(preferred)
	}
	addrs := d.Addresses()
	if len(addrs) == 0 {
		return nil, ErrNoAccounts
	}
	return d.accounts[addrs[rand.IntN(len(addrs))]], nil
}

// Addresses returns the known addresses in sorted order.
func (d *Directory) Addresses() []string {
	addrs := make([]string, 0, len(d.accounts))
	for addr := range d.accounts {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Len returns the number of accounts.
func (d *Directory) Len() int {
	return len(d.accounts)
}
