package policy

// ScopeGlobal is the scope key under which blanket limits aggregate.
const ScopeGlobal = "global"

// FindMostSpecificIncomingLimit resolves the single limit that applies to a
// transfer toward this service. Resolution order, most specific first:
// per-endpoint (exact path), per-sender (exact wallet address), global.
// Only the winning scope is evaluated; scopes are never summed.
func FindMostSpecificIncomingLimit(ls *LimitSet, walletAddress, networkOrigin, endpointPath string) (*Limit, string) {
	if ls == nil {
		return nil, ""
	}

	if endpointPath != "" {
		if limit, ok := ls.PerEndpoint[endpointPath]; ok && limit != nil {
			return limit, endpointPath
		}
	}

	if limit, key := lookupIdentity(ls.PerSender, walletAddress, networkOrigin); limit != nil {
		return limit, key
	}

	if ls.Global != nil {
		return ls.Global, ScopeGlobal
	}
	return nil, ""
}

// FindMostSpecificOutgoingLimit is the structural mirror for transfers away
// from this service: per-endpoint, then per-target, then global.
func FindMostSpecificOutgoingLimit(ls *LimitSet, targetAddress, targetOrigin, endpointPath string) (*Limit, string) {
	if ls == nil {
		return nil, ""
	}

	if endpointPath != "" {
		if limit, ok := ls.PerEndpoint[endpointPath]; ok && limit != nil {
			return limit, endpointPath
		}
	}

	if limit, key := lookupIdentity(ls.PerTarget, targetAddress, targetOrigin); limit != nil {
		return limit, key
	}

	if ls.Global != nil {
		return ls.Global, ScopeGlobal
	}
	return nil, ""
}

// lookupIdentity finds a limit keyed by the counterparty's wallet address
// (checksum-insensitive) or network origin. The configured key is returned
// as the accounting scope so records stay stable across checksum variants.
func lookupIdentity(limits map[string]*Limit, walletAddress, networkOrigin string) (*Limit, string) {
	if len(limits) == 0 {
		return nil, ""
	}

	if limit, ok := limits[walletAddress]; ok && limit != nil && walletAddress != "" {
		return limit, walletAddress
	}

	if wallet, ok := NormalizeWallet(walletAddress); ok {
		for key, limit := range limits {
			if limit == nil {
				continue
			}
			if normalized, isWallet := NormalizeWallet(key); isWallet && normalized == wallet {
				return limit, key
			}
		}
	}

	if networkOrigin != "" {
		for key, limit := range limits {
			if limit == nil {
				continue
			}
			if _, isWallet := NormalizeWallet(key); isWallet {
				continue
			}
			if matchOrigin(key, networkOrigin) {
				return limit, key
			}
		}
	}

	return nil, ""
}
