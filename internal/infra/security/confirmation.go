package security

import (
	"fmt"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
)

// AutoLoginSaltParam carries a person's auto login salt into connection tokens.
const AutoLoginSaltParam = "auto_login_salt"

type confirmationFamily struct {
	keySalt     string
	params      []string
	subjectSalt string
}

var confirmationFamilies = map[domain.TokenKind]confirmationFamily{
	domain.TokenKindSubscription: {keySalt: "agir.people.subscription", params: []string{"email", "type"}},
	domain.TokenKindAddEmail:     {keySalt: "agir.people.add_email", params: []string{"new_email", "user"}},
	domain.TokenKindMergeAccount: {keySalt: "agir.people.merge_account", params: []string{"pk_requester", "pk_merge"}},
	domain.TokenKindInvitation:   {keySalt: "agir.groups.invitation", params: []string{"person_id", "group_id"}},
	domain.TokenKindConnection:   {keySalt: "agir.authentication.connection", params: []string{"user"}, subjectSalt: AutoLoginSaltParam},
}

// NewConfirmationGenerators builds one signature generator per confirmation token family.
// validityDays must provide a value for every family.
func NewConfirmationGenerators(secret string, validityDays map[domain.TokenKind]int) (map[domain.TokenKind]*SignatureGenerator, error) {
	generators := make(map[domain.TokenKind]*SignatureGenerator, len(confirmationFamilies))

	for _, kind := range domain.TokenKinds() {
		family := confirmationFamilies[kind]

		validity, ok := validityDays[kind]
		if !ok {
			return nil, fmt.Errorf("missing validity for %s tokens", kind)
		}

		gen, err := NewSignatureGenerator(SignatureConfig{
			Secret:           secret,
			KeySalt:          family.keySalt,
			Validity:         validity,
			TokenParams:      family.params,
			SubjectSaltParam: family.subjectSalt,
		})
		if err != nil {
			return nil, fmt.Errorf("build %s generator: %w", kind, err)
		}
		generators[kind] = gen
	}

	return generators, nil
}
