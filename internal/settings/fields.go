package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/kadisync/internal/apperr"
)

// Keys lists the names accepted by Set, matching the JSON field names.
var Keys = []string{
	"host", "pat", "timeout", "verifySSL",
	"autoSyncOnSave", "syncAttachments", "defaultVisibility", "defaultState", "conflictResolution",
	"customMetadataMapping", "tagFilter", "excludeFolders", "debugMode",
}

// Set assigns one field from its text form. Lists are comma-separated,
// the mapping is written as "from=to,other=key".
func (s *Settings) Set(key, value string) error {
	var err error
	switch key {
	case "host":
		s.Host = strings.TrimSpace(value)
	case "pat":
		s.Token = strings.TrimSpace(value)
	case "timeout":
		s.TimeoutMS, err = strconv.Atoi(value)
	case "verifySSL":
		s.VerifySSL, err = strconv.ParseBool(value)
	case "autoSyncOnSave":
		s.AutoSyncOnSave, err = strconv.ParseBool(value)
	case "syncAttachments":
		s.SyncAttachments, err = strconv.ParseBool(value)
	case "defaultVisibility":
		s.DefaultVisibility = value
	case "defaultState":
		s.DefaultState = value
	case "conflictResolution":
		s.ConflictResolution = value
	case "customMetadataMapping":
		s.CustomMetadataMapping, err = parseMapping(value)
	case "tagFilter":
		s.TagFilter = splitList(value)
	case "excludeFolders":
		s.ExcludeFolders = splitList(value)
	case "debugMode":
		s.DebugMode, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown setting %q: %w", key, apperr.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("setting %s: %v: %w", key, err, apperr.ErrValidation)
	}
	return nil
}

func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseMapping(value string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range splitList(value) {
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("mapping entry %q is not from=to", pair)
		}
		out[from] = to
	}
	return out, nil
}
