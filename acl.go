// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package ustar

import (
	"strconv"
	"strings"
)

// parseACLText decodes the comma-separated `kind[:id]:rwx` records stored
// in SCHILY.acl.access / SCHILY.acl.default, per spec.md §4.4.
func parseACLText(text string) ([]ACLEntry, error) {
	var out []ACLEntry
	for _, tok := range strings.Split(text, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		parts := strings.Split(tok, ":")
		if len(parts) != 3 {
			return nil, errf(KindInvalidHeader, "malformed ACL record %q", tok)
		}
		kindStr, idStr, permStr := parts[0], parts[1], parts[2]

		var e ACLEntry
		switch kindStr {
		case "user":
			if idStr == "" {
				e.Kind = ACLUserObj
			} else {
				e.Kind = ACLUser
			}
		case "group":
			if idStr == "" {
				e.Kind = ACLGroupObj
			} else {
				e.Kind = ACLGroup
			}
		case "mask":
			e.Kind = ACLMask
		case "other":
			e.Kind = ACLOther
		default:
			return nil, errf(KindInvalidHeader, "unknown ACL entry kind %q", kindStr)
		}

		if idStr != "" {
			id, err := strconv.ParseUint(idStr, 10, 32)
			if err != nil {
				return nil, errf(KindInvalidHeader, "invalid ACL id %q", idStr)
			}
			e.ID = uint32(id)
		}

		if len(permStr) != 3 {
			return nil, errf(KindInvalidHeader, "malformed ACL permission triplet %q", permStr)
		}
		if permStr[0] != 'r' && permStr[0] != '-' {
			return nil, errf(KindInvalidHeader, "malformed ACL permission triplet %q", permStr)
		}
		if permStr[1] != 'w' && permStr[1] != '-' {
			return nil, errf(KindInvalidHeader, "malformed ACL permission triplet %q", permStr)
		}
		if permStr[2] != 'x' && permStr[2] != '-' {
			return nil, errf(KindInvalidHeader, "malformed ACL permission triplet %q", permStr)
		}
		e.Read = permStr[0] == 'r'
		e.Write = permStr[1] == 'w'
		e.Exec = permStr[2] == 'x'

		out = append(out, e)
	}
	return out, nil
}
