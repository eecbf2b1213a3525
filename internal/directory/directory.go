// Package directory wraps the LDAP bind and search exchanges used to verify
// credentials and resolve group membership. Failed binds with wrong
// credentials are an expected outcome and are reported as ErrBindFailed;
// unreachable or misbehaving directories surface as ErrUnavailable.
package directory

import (
	"errors"
	"fmt"
	"net"

	"github.com/go-ldap/ldap/v3"

	"github.com/fwdesk/fwdesk/internal/config"
)

var (
	// ErrBindFailed means the directory rejected the supplied credentials.
	ErrBindFailed = errors.New("directory bind failed")
	// ErrUnavailable means the directory could not be reached or returned a
	// protocol-level failure.
	ErrUnavailable = errors.New("directory unavailable")
)

// Client is the directory operation surface the authentication service
// depends on.
type Client interface {
	// Authenticate attempts a bind as the given user. Returns ErrBindFailed
	// for wrong credentials and ErrUnavailable for network or protocol
	// failures.
	Authenticate(username, password string) error
	// FetchGroups resolves the user's group memberships and display name.
	FetchGroups(username string) (groups []string, displayName string, err error)
}

// LDAPClient talks to an LDAP-compatible directory. Each operation opens a
// fresh connection and releases it before returning; there is no pooling.
type LDAPClient struct {
	cfg config.DirectoryConfig
}

// NewLDAPClient creates a client for the configured directory.
func NewLDAPClient(cfg config.DirectoryConfig) *LDAPClient {
	return &LDAPClient{cfg: cfg}
}

// Principal builds the bind principal for a username by appending the
// configured domain suffix.
func (c *LDAPClient) Principal(username string) string {
	return username + c.cfg.DomainSuffix
}

func (c *LDAPClient) dial() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(c.cfg.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: c.cfg.Timeout}))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, c.cfg.URL, err)
	}
	conn.SetTimeout(c.cfg.Timeout)
	return conn, nil
}

// Authenticate binds as the user and immediately releases the connection.
func (c *LDAPClient) Authenticate(username, password string) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Bind(c.Principal(username), password); err != nil {
		return classifyBindError(err)
	}
	return nil
}

// FetchGroups searches the subtree under the base DN for the user's entry and
// extracts memberOf values and the display name. Single- and multi-valued
// memberOf attributes both come back as a slice. The search is performed
// under the configured service bind, or anonymously when no bind DN is set.
func (c *LDAPClient) FetchGroups(username string) ([]string, string, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, "", err
	}
	defer conn.Close()

	if c.cfg.BindDN != "" {
		if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			return nil, "", fmt.Errorf("%w: service bind: %v", ErrUnavailable, err)
		}
	}

	req := ldap.NewSearchRequest(
		c.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(username)),
		[]string{"memberOf", "displayName"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: search: %v", ErrUnavailable, err)
	}
	if len(res.Entries) == 0 {
		return nil, "", nil
	}

	entry := res.Entries[0]
	return entry.GetAttributeValues("memberOf"), entry.GetAttributeValue("displayName"), nil
}

// classifyBindError separates wrong-credential results from directory
// failures. LDAP reports bad credentials as result code 49.
func classifyBindError(err error) error {
	if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
		return fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	return fmt.Errorf("%w: bind: %v", ErrUnavailable, err)
}
