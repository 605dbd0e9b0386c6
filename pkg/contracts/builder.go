package contracts

// RawContract is the unvalidated input to Build: raw metadata and a
// schema description as supplied by a caller (e.g. a SchemaImporter
// collaborator per the collaborator interfaces). It carries no version;
// Build assembles the candidate and leaves version assignment to the
// versioner.
type RawContract struct {
	Dataset       string         `json:"dataset"`
	Ownership     Ownership      `json:"ownership"`
	Schema        []Field        `json:"schema"`
	Governance    Governance     `json:"governance"`
	Quality       Quality        `json:"quality,omitempty"`
	Subscriptions []Subscription `json:"subscriptions,omitempty"`
}

// Builder assembles a candidate Contract from raw input: it normalizes
// field ordering for the fingerprint while preserving the caller's
// original field order for presentation, computes the fingerprint, and
// runs the structural invariant checks. The returned contract carries
// no version; that is the versioner's job.
type Builder struct{}

// NewBuilder returns a ready-to-use Builder. It holds no state: building
// a contract is a pure function of its raw input.
func NewBuilder() *Builder { return &Builder{} }

// Build assembles a candidate contract without an assigned version.
func (b *Builder) Build(raw RawContract) (*Contract, error) {
	fields := make([]Field, len(raw.Schema))
	copy(fields, raw.Schema)

	c := &Contract{
		Identity: Identity{
			Dataset:     raw.Dataset,
			Fingerprint: Fingerprint(fields),
		},
		Ownership:     raw.Ownership,
		Schema:        fields,
		Governance:    raw.Governance,
		Quality:       raw.Quality,
		Subscriptions: raw.Subscriptions,
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}
