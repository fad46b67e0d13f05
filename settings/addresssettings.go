package settings

import "time"

// AddressFullPolicy selects what happens to new messages once an address
// reaches its size limit.
type AddressFullPolicy int

const (
	// PolicyPage spools overflowing messages to disk
	PolicyPage AddressFullPolicy = iota
	// PolicyDrop silently discards overflowing messages
	PolicyDrop
	// PolicyBlock blocks producers until space frees up
	PolicyBlock
)

// String returns the string representation of the policy
func (p AddressFullPolicy) String() string {
	switch p {
	case PolicyPage:
		return "page"
	case PolicyDrop:
		return "drop"
	case PolicyBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Default values applied when no pattern and no field supplies one.
const (
	DefaultMaxSizeBytes        = int64(-1)
	DefaultMaxDeliveryAttempts = 10
	DefaultRedeliveryDelay     = time.Duration(0)
)

// AddressSettings is the per-address configuration payload resolved through
// the repository. Nil fields are unset and inherit from less specific
// matches during the merge fold.
type AddressSettings struct {
	MaxSizeBytes        *int64
	MaxDeliveryAttempts *int
	RedeliveryDelay     *time.Duration
	ExpiryAddress       *string
	DeadLetterAddress   *string
	FullPolicy          *AddressFullPolicy
}

// Clone returns a copy sharing no pointers with the original.
func (as *AddressSettings) Clone() *AddressSettings {
	if as == nil {
		return &AddressSettings{}
	}
	out := &AddressSettings{}
	if as.MaxSizeBytes != nil {
		v := *as.MaxSizeBytes
		out.MaxSizeBytes = &v
	}
	if as.MaxDeliveryAttempts != nil {
		v := *as.MaxDeliveryAttempts
		out.MaxDeliveryAttempts = &v
	}
	if as.RedeliveryDelay != nil {
		v := *as.RedeliveryDelay
		out.RedeliveryDelay = &v
	}
	if as.ExpiryAddress != nil {
		v := *as.ExpiryAddress
		out.ExpiryAddress = &v
	}
	if as.DeadLetterAddress != nil {
		v := *as.DeadLetterAddress
		out.DeadLetterAddress = &v
	}
	if as.FullPolicy != nil {
		v := *as.FullPolicy
		out.FullPolicy = &v
	}
	return out
}

// Merge overrides the receiver's fields with every field set on other. The
// repository folds least specific first, so other always comes from a more
// specific pattern and its fields win.
func (as *AddressSettings) Merge(other *AddressSettings) {
	if other == nil {
		return
	}
	if other.MaxSizeBytes != nil {
		as.MaxSizeBytes = other.MaxSizeBytes
	}
	if other.MaxDeliveryAttempts != nil {
		as.MaxDeliveryAttempts = other.MaxDeliveryAttempts
	}
	if other.RedeliveryDelay != nil {
		as.RedeliveryDelay = other.RedeliveryDelay
	}
	if other.ExpiryAddress != nil {
		as.ExpiryAddress = other.ExpiryAddress
	}
	if other.DeadLetterAddress != nil {
		as.DeadLetterAddress = other.DeadLetterAddress
	}
	if other.FullPolicy != nil {
		as.FullPolicy = other.FullPolicy
	}
}

// GetMaxSizeBytes returns the configured limit or the default (-1, unlimited).
func (as *AddressSettings) GetMaxSizeBytes() int64 {
	if as == nil || as.MaxSizeBytes == nil {
		return DefaultMaxSizeBytes
	}
	return *as.MaxSizeBytes
}

// GetMaxDeliveryAttempts returns the configured attempt limit or the default.
func (as *AddressSettings) GetMaxDeliveryAttempts() int {
	if as == nil || as.MaxDeliveryAttempts == nil {
		return DefaultMaxDeliveryAttempts
	}
	return *as.MaxDeliveryAttempts
}

// GetRedeliveryDelay returns the configured redelivery delay or the default.
func (as *AddressSettings) GetRedeliveryDelay() time.Duration {
	if as == nil || as.RedeliveryDelay == nil {
		return DefaultRedeliveryDelay
	}
	return *as.RedeliveryDelay
}

// GetExpiryAddress returns the expiry address, empty when unset.
func (as *AddressSettings) GetExpiryAddress() string {
	if as == nil || as.ExpiryAddress == nil {
		return ""
	}
	return *as.ExpiryAddress
}

// GetDeadLetterAddress returns the dead-letter address, empty when unset.
func (as *AddressSettings) GetDeadLetterAddress() string {
	if as == nil || as.DeadLetterAddress == nil {
		return ""
	}
	return *as.DeadLetterAddress
}

// GetFullPolicy returns the configured policy, PolicyPage when unset.
func (as *AddressSettings) GetFullPolicy() AddressFullPolicy {
	if as == nil || as.FullPolicy == nil {
		return PolicyPage
	}
	return *as.FullPolicy
}

// MergeAddressSettings is the Merger for *AddressSettings repositories. The
// accumulator is cloned before each merge step so values stored in the
// repository are never mutated by lookups.
func MergeAddressSettings(acc, next *AddressSettings) *AddressSettings {
	merged := acc.Clone()
	merged.Merge(next)
	return merged
}

// NewAddressSettingsRepository creates a repository of *AddressSettings
// with field-level merging enabled.
func NewAddressSettingsRepository(opts ...Option[*AddressSettings]) Repository[*AddressSettings] {
	opts = append([]Option[*AddressSettings]{WithMerger(MergeAddressSettings)}, opts...)
	return NewRepository(opts...)
}
