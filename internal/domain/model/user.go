package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Gender is the caller-declared gender of a connected user.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender validates the wire representation of a gender.
func ParseGender(s string) (Gender, error) {
	switch Gender(s) {
	case GenderMale, GenderFemale, GenderOther:
		return Gender(s), nil
	default:
		return "", fmt.Errorf("unknown gender %q", s)
	}
}

// Preference is the gender a user wants to be paired with.
type Preference string

const (
	PreferAny    Preference = "any"
	PreferMale   Preference = "male"
	PreferFemale Preference = "female"
	PreferOther  Preference = "other"
)

// ParsePreference validates the wire representation of a preference.
// Empty defaults to "any" for forward compatibility with older clients.
func ParsePreference(s string) (Preference, error) {
	switch Preference(s) {
	case PreferAny, PreferMale, PreferFemale, PreferOther:
		return Preference(s), nil
	case "":
		return PreferAny, nil
	default:
		return "", fmt.Errorf("unknown preferred_gender %q", s)
	}
}

// Tier is the subscription flag carried on the join message. The service
// trusts it; the subscription lifecycle itself lives elsewhere.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// ParseTier validates the wire representation of a tier. Empty means free.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierPremium:
		return Tier(s), nil
	case "":
		return TierFree, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

//go:generate stringer -type=State
type State int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	Idle State = iota + 1
	Waiting
	Paired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Paired:
		return "paired"
	default:
		return fmt.Sprintf("state(%d)", int16(s))
	}
}

// Profile is the matching-relevant data supplied on join-queue.
type Profile struct {
	UserID          string
	Username        string
	Gender          Gender
	Age             int
	PreferredGender Preference
	Tier            Tier
}

// Normalized enforces the server-side premium rule: a free user's specific
// preference is silently downgraded to "any".
func (p Profile) Normalized() Profile {
	if p.Tier != TierPremium {
		p.PreferredGender = PreferAny
	}
	return p
}

// WantsSpecific reports whether the profile carries an enforceable preference.
func (p Profile) WantsSpecific() bool {
	return p.Tier == TierPremium && p.PreferredGender != PreferAny
}

// User is the in-memory record attached to one live connection.
//
// Mutated only under the matchmaker's critical section; no other component
// reaches into the record.
type User struct {
	ConnID  uuid.UUID
	Profile Profile

	// Partner is the connection_id of the current partner, uuid.Nil when unpaired.
	Partner uuid.UUID
	State   State
}

// PartnerInfo is the public slice of a profile echoed to the matched partner.
type PartnerInfo struct {
	Name   string `json:"name"`
	Gender Gender `json:"gender"`
	Age    int    `json:"age"`
}

// Info projects the public partner view of a user.
func (u *User) Info() PartnerInfo {
	return PartnerInfo{
		Name:   u.Profile.Username,
		Gender: u.Profile.Gender,
		Age:    u.Profile.Age,
	}
}

// Bucket names one of the four waiting pools.
type Bucket string

const (
	BucketAny    Bucket = "any"
	BucketMale   Bucket = "male"
	BucketFemale Bucket = "female"
	BucketOther  Bucket = "other"
)

// Buckets lists all pools in the default scan order.
var Buckets = []Bucket{BucketAny, BucketMale, BucketFemale, BucketOther}

// QueueBucket selects the pool a waiting user belongs to. A premium user with
// a specific preference waits in the pool named by that preference, where
// scanners filtering for that gender look first; everyone else waits in "any".
func QueueBucket(p Profile) Bucket {
	if p.WantsSpecific() {
		return Bucket(p.PreferredGender)
	}
	return BucketAny
}
