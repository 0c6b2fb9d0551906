package secrets

import (
	"fmt"
	"net/url"
	"strings"
)

// Reference is a parsed secret reference. Two forms are accepted:
//
//	secret://NAME[?version=V&project=P]
//	secret://projects/P/secrets/NAME[/versions/V]
//
// sm:// is accepted as an alias of secret://.
type Reference struct {
	Canonical string
	Project   string
	Secret    string
	Version   string
}

// ParseReference validates and normalises ref.
func ParseReference(ref string) (Reference, error) {
	ref = strings.TrimSpace(ref)
	if rest, ok := strings.CutPrefix(ref, "sm://"); ok {
		ref = "secret://" + rest
	}
	u, err := url.Parse(ref)
	if err != nil {
		return Reference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return Reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}

	parsed := Reference{
		Project: strings.TrimSpace(u.Query().Get("project")),
		Version: strings.TrimSpace(u.Query().Get("version")),
	}
	segments := strings.Split(strings.Trim(u.Host+u.Path, "/"), "/")
	switch {
	case len(segments) == 1 && segments[0] != "":
		parsed.Secret = segments[0]
	case len(segments) >= 4 && segments[0] == "projects" && segments[2] == "secrets":
		parsed.Project = segments[1]
		parsed.Secret = segments[3]
		if len(segments) == 6 && segments[4] == "versions" {
			parsed.Version = segments[5]
		} else if len(segments) != 4 {
			return Reference{}, fmt.Errorf("secrets: malformed resource path in %q", ref)
		}
	default:
		return Reference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}
	if parsed.Version == "" {
		parsed.Version = "latest"
	}

	parsed.Canonical = "secret://" + parsed.Secret + "?version=" + url.QueryEscape(parsed.Version)
	if parsed.Project != "" {
		parsed.Canonical += "&project=" + url.QueryEscape(parsed.Project)
	}
	return parsed, nil
}

// ResourceName renders the Secret Manager version resource, using defaultProject when the
// reference names none. Empty when no project is known.
func (r Reference) ResourceName(defaultProject string) string {
	project := r.Project
	if project == "" {
		project = strings.TrimSpace(defaultProject)
	}
	if project == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, r.Secret, r.Version)
}
