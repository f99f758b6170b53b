package remote

import "strings"

// hsmWrongKeySubstring is the known HSM error fragment that indicates a
// decrypt failed because the wrong key was presented, not because the
// remote service itself is unhealthy. Matching is deliberately a plain
// substring search: the remote service's error text is not a stable,
// versioned contract, only an observed convention.
const hsmWrongKeySubstring = "function 'C_Decrypt' returns 0x40"

// dsmWrongKeyPrefix is the known DSM wrong-key error fragment. Unlike the
// HSM fragment, this one is matched as a prefix, not a substring: the DSM
// always emits it at the start of the error message.
const dsmWrongKeyPrefix = "Decrypt error: rv=48"

// looksLikeWrongKey reports whether msg matches one of the known
// wrong-key error fragments from the remote service.
func looksLikeWrongKey(msg string) bool {
	return strings.Contains(msg, hsmWrongKeySubstring) || strings.HasPrefix(msg, dsmWrongKeyPrefix)
}
