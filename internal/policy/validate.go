package policy

import (
	validation "github.com/jellydator/validation"
)

// Creation/edit-time validation. Request-time evaluation trusts stored data,
// so every structural rule is enforced here before anything is persisted.

// ValidateRealm checks the structural invariants of a realm: a valid,
// lowercase-normalizable domain, a known realm type, and non-empty
// permission sets.
func ValidateRealm(r *Realm) error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Domain,
			validation.Required,
			validation.By(validDNSNameRule),
		),
		validation.Field(&r.Type,
			validation.Required,
			validation.In(RealmTypeHost, RealmTypeSubdomain, RealmTypeSubdomainOnly),
		),
		validation.Field(&r.AllowedRecordTypes,
			validation.Required,
			validation.Each(validation.Required, validation.Length(1, 16)),
		),
		validation.Field(&r.AllowedOperations,
			validation.Required,
			validation.Each(validation.In(OperationRead, OperationCreate, OperationUpdate, OperationDelete)),
		),
		validation.Field(&r.Status,
			validation.Required,
			validation.In(RealmStatusPending, RealmStatusApproved, RealmStatusRejected, RealmStatusRevoked),
		),
	)
}

// ValidateToken checks a token against its parent realm: name present,
// non-nil narrowing sets must be non-empty subsets of the realm's sets,
// and every IP range entry must parse. Nil sets mean "inherit" and are
// always valid.
func ValidateToken(realm *Realm, t *Token) error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Name,
			validation.Required,
			validation.Length(1, 255),
		),
		validation.Field(&t.AllowedRecordTypes,
			validation.By(subsetOfStrings(realm.AllowedRecordTypes)),
		),
		validation.Field(&t.AllowedOperations,
			validation.By(subsetOfOperations(realm.AllowedOperations)),
		),
		validation.Field(&t.AllowedIPRanges,
			validation.By(validIPRangesRule),
		),
	)
}

func validDNSNameRule(value interface{}) error {
	name, ok := value.(string)
	if !ok || NormalizeHostname(name) == "" {
		return validation.NewError("validation_dns_name", "must be a valid DNS name")
	}
	return nil
}

func validIPRangesRule(value interface{}) error {
	ranges, ok := value.([]string)
	if !ok {
		return validation.NewError("validation_ip_ranges", "must be a list of IP range entries")
	}
	if err := ValidateIPRanges(ranges); err != nil {
		return validation.NewError("validation_ip_ranges", err.Error())
	}
	return nil
}

func subsetOfStrings(allowed []string) validation.RuleFunc {
	return func(value interface{}) error {
		set, ok := value.([]string)
		if !ok {
			return validation.NewError("validation_subset", "must be a list of strings")
		}
		if set == nil {
			return nil // inherit
		}
		if len(set) == 0 {
			return validation.NewError("validation_subset", "must not be empty; omit to inherit")
		}
		for _, v := range set {
			if !containsString(allowed, v) {
				return validation.NewError("validation_subset", "must be a subset of the realm's list")
			}
		}
		return nil
	}
}

func subsetOfOperations(allowed []Operation) validation.RuleFunc {
	return func(value interface{}) error {
		set, ok := value.([]Operation)
		if !ok {
			return validation.NewError("validation_subset", "must be a list of operations")
		}
		if set == nil {
			return nil // inherit
		}
		if len(set) == 0 {
			return validation.NewError("validation_subset", "must not be empty; omit to inherit")
		}
		for _, v := range set {
			if !containsOperation(allowed, v) {
				return validation.NewError("validation_subset", "must be a subset of the realm's list")
			}
		}
		return nil
	}
}
