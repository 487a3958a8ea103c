package entitlement

// Tier is the subscription level of a viewer. The three tiers strictly
// nest: every allowance of a lower tier is at most the allowance of the
// tier above it.
type Tier int

const (
	TierFree Tier = iota
	TierPlus
	TierPremium
)

func (t Tier) String() string {
	switch t {
	case TierPlus:
		return "plus"
	case TierPremium:
		return "premium"
	default:
		return "free"
	}
}

// ParseTier maps a stored tier name to a Tier; unknown values degrade
// to free rather than failing open.
func ParseTier(s string) Tier {
	switch s {
	case "plus":
		return TierPlus
	case "premium":
		return TierPremium
	default:
		return TierFree
	}
}

// Unlimited marks an allowance with no numeric cap.
const Unlimited = -1

// GatedAction names an action metered by a per-day counter.
type GatedAction string

const (
	ActionArchive GatedAction = "archive"
	ActionSecret  GatedAction = "secret"
)

// Limits is the typed capability table of one tier.
type Limits struct {
	ArchivesPerDay   int
	SecretsPerDay    int
	DailyBatidas     int
	CustomFilters    bool
	PreMatchMessages bool
}

// LimitsFor resolves the capability table of a tier. Pure function;
// the switch is exhaustive over the closed Tier set.
func LimitsFor(t Tier) Limits {
	switch t {
	case TierPremium:
		return Limits{
			ArchivesPerDay:   Unlimited,
			SecretsPerDay:    Unlimited,
			DailyBatidas:     50,
			CustomFilters:    true,
			PreMatchMessages: true,
		}
	case TierPlus:
		return Limits{
			ArchivesPerDay:   20,
			SecretsPerDay:    3,
			DailyBatidas:     20,
			CustomFilters:    true,
			PreMatchMessages: false,
		}
	default: // TierFree
		return Limits{
			ArchivesPerDay:   5,
			SecretsPerDay:    1,
			DailyBatidas:     10,
			CustomFilters:    false,
			PreMatchMessages: false,
		}
	}
}

// limitFor picks the numeric cap of one counted action.
func (l Limits) limitFor(a GatedAction) int {
	switch a {
	case ActionArchive:
		return l.ArchivesPerDay
	case ActionSecret:
		return l.SecretsPerDay
	default:
		return 0
	}
}
