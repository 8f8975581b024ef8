package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"academic_outreach/internal/domain/account"
)

// AccountConfig is one entry of the accounts file.
type AccountConfig struct {
	Address    string `mapstructure:"address" yaml:"address"`
	Username   string `mapstructure:"username" yaml:"username"`
	Password   string `mapstructure:"password" yaml:"password"`
	SMTPHost   string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort   int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	IMAPHost   string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort   int    `mapstructure:"imap_port" yaml:"imap_port"`
	Security   string `mapstructure:"security" yaml:"security"`
	SentFolder string `mapstructure:"sent_folder" yaml:"sent_folder"`
}

// AccountsFile is the top-level layout of the accounts file.
type AccountsFile struct {
	Accounts []AccountConfig `mapstructure:"accounts" yaml:"accounts"`
}

// SecretLookup resolves a password that is not stored in the accounts file.
type SecretLookup func(key string) (string, error)

// LoadAccounts reads the account directory from a YAML file using Viper.
// Empty passwords are resolved through secrets, keyed by address.
func LoadAccounts(path string, secrets SecretLookup) (*account.Directory, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return nil, fmt.Errorf("accounts file %s not found", path)
		}
		return nil, fmt.Errorf("reading accounts file %s: %w", path, err)
	}

	var file AccountsFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("parsing accounts file %s: %w", path, err)
	}

	accounts := make([]*account.Account, 0, len(file.Accounts))
	for i, ac := range file.Accounts {
		acc, err := ac.toAccount()
		if err != nil {
			return nil, fmt.Errorf("account #%d in %s: %w", i+1, path, err)
		}
		if acc.Password == "" && secrets != nil {
			pw, err := secrets(acc.Address)
			if err != nil {
				return nil, fmt.Errorf("password for %s: %w", acc.Address, err)
			}
			acc.Password = pw
		}
		accounts = append(accounts, acc)
	}

	return account.NewDirectory(accounts)
}

func (c AccountConfig) toAccount() (*account.Account, error) {
	if strings.TrimSpace(c.Address) == "" {
		return nil, fmt.Errorf("address is required")
	}
	if c.SMTPHost == "" {
		return nil, fmt.Errorf("smtp_host is required for %s", c.Address)
	}

	security := account.Security(strings.ToLower(strings.TrimSpace(c.Security)))
	switch security {
	case "":
		security = account.SecurityTLS
	case account.SecurityTLS, account.SecurityStartTLS, account.SecurityNone:
	default:
		return nil, fmt.Errorf("unknown security mode %q for %s", c.Security, c.Address)
	}

	acc := &account.Account{
		Address:    strings.TrimSpace(c.Address),
		Username:   c.Username,
		Password:   c.Password,
		SMTPHost:   c.SMTPHost,
		SMTPPort:   c.SMTPPort,
		IMAPHost:   c.IMAPHost,
		IMAPPort:   c.IMAPPort,
		Security:   security,
		SentFolder: c.SentFolder,
	}
	if acc.SMTPPort == 0 {
		switch security {
		case account.SecurityTLS:
			acc.SMTPPort = 465
		case account.SecurityStartTLS:
			acc.SMTPPort = 587
		default:
			acc.SMTPPort = 25
		}
	}
	if acc.IMAPHost == "" {
		acc.IMAPHost = acc.SMTPHost
	}
	if acc.IMAPPort == 0 {
		if security == account.SecurityTLS {
			acc.IMAPPort = 993
		} else {
			acc.IMAPPort = 143
		}
	}
	return acc, nil
}
