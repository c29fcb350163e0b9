package churchapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
)

var errMalformed = errors.New("malformed response")

// Field names tried, in order, when a profile object does not use the canonical key.
var (
	nameKeys  = []string{"name", "nama", "full_name", "display_name", "username"}
	emailKeys = []string{"email", "mail"}
)

// extractor pulls login and profile fields out of decoded JSON using JMESPath.
type extractor struct {
	tokenExpr   string
	profileExpr string
	roleExpr    string
	messageExpr string
}

func newExtractor(token, profile, role, message string) (extractor, error) {
	e := extractor{tokenExpr: token, profileExpr: profile, roleExpr: role, messageExpr: message}
	for name, expr := range map[string]string{"token": token, "profile": profile, "role": role, "message": message} {
		if strings.TrimSpace(expr) == "" {
			return extractor{}, fmt.Errorf("%s expression is empty", name)
		}
		if _, err := jmespath.Compile(expr); err != nil {
			return extractor{}, fmt.Errorf("compile %s expression %q: %w", name, expr, err)
		}
	}
	return e, nil
}

func search(expr string, doc any) any {
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil
	}
	return v
}

func (e extractor) token(doc any) string {
	return scalarString(search(e.tokenExpr, doc))
}

func (e extractor) message(doc any) string {
	return strings.TrimSpace(scalarString(search(e.messageExpr, doc)))
}

// profile reads the user record. The id is required; numeric ids become strings.
func (e extractor) profile(doc any) (domainauth.Profile, error) {
	obj, ok := search(e.profileExpr, doc).(map[string]any)
	if !ok {
		return domainauth.Profile{}, fmt.Errorf("%w: no profile object", errMalformed)
	}

	p := domainauth.Profile{
		ID:          scalarString(obj["id"]),
		DisplayName: firstString(obj, nameKeys),
		Email:       firstString(obj, emailKeys),
	}
	if p.ID == "" {
		return domainauth.Profile{}, fmt.Errorf("%w: profile has no id", errMalformed)
	}

	// Role may live next to the profile or at the top of the document.
	p.RawRole = scalarString(search(e.roleExpr, doc))
	if p.RawRole == "" {
		p.RawRole = scalarString(obj["role"])
	}
	return p, nil
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s := scalarString(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

// scalarString renders JSON strings and numbers as text. Other values yield "".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}
