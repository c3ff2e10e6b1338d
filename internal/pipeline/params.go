package pipeline

import (
	"fmt"
	"strconv"

	"github.com/ShayCichocki/digestflow/internal/count"
	"github.com/ShayCichocki/digestflow/internal/digest"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

// Task parameter keys.
const (
	ParamPattern         = "pattern"
	ParamMissedCleavages = "missed_cleavages"
	ParamMinLength       = "min_length"
	ParamMaxLength       = "max_length"
	ParamAminoAcid       = "amino_acid"
)

// Params are the user-facing options of a pipeline run.
type Params struct {
	// Enzyme is a registered enzyme name or a raw cleavage pattern.
	Enzyme          string
	MissedCleavages int
	MinLength       int
	MaxLength       int
	AminoAcid       string
}

// DefaultParams returns a tryptic digest counting cysteines.
func DefaultParams() Params {
	return Params{
		Enzyme:          digest.DefaultEnzyme,
		MissedCleavages: digest.DefaultMissedCleavages,
		MinLength:       digest.DefaultMinLength,
		MaxLength:       digest.DefaultMaxLength,
		AminoAcid:       count.DefaultAminoAcid,
	}
}

// DigestOptions resolves the enzyme and returns validated digest options.
func (p Params) DigestOptions() (digest.Options, error) {
	opts := digest.Options{
		Pattern:         digest.ResolvePattern(p.Enzyme),
		MissedCleavages: p.MissedCleavages,
		MinLength:       p.MinLength,
		MaxLength:       p.MaxLength,
	}
	if err := opts.Validate(); err != nil {
		return digest.Options{}, err
	}
	if _, err := digest.NewRegexpCleaver(opts.Pattern); err != nil {
		return digest.Options{}, err
	}
	return opts, nil
}

// Validate checks the digest options and the target residue.
func (p Params) Validate() error {
	if _, err := p.DigestOptions(); err != nil {
		return err
	}
	if p.AminoAcid == "" {
		return count.ErrInvalidTarget
	}
	return nil
}

// TaskParams returns the params a task of kind carries, or nil when the
// step takes none.
func (p Params) TaskParams(kind models.TaskKind) map[string]string {
	switch kind {
	case models.TaskKindDigest:
		return p.digestParams()
	case models.TaskKindCount:
		return p.countParams()
	default:
		return nil
	}
}

// digestParams are the task params of a digest step. The enzyme is stored
// resolved, so an alias and its pattern share cache entries.
func (p Params) digestParams() map[string]string {
	return map[string]string{
		ParamPattern:         digest.ResolvePattern(p.Enzyme),
		ParamMissedCleavages: strconv.Itoa(p.MissedCleavages),
		ParamMinLength:       strconv.Itoa(p.MinLength),
		ParamMaxLength:       strconv.Itoa(p.MaxLength),
	}
}

func (p Params) countParams() map[string]string {
	return map[string]string{ParamAminoAcid: p.AminoAcid}
}

// optionsFromParams rebuilds digest options from a task's params.
func optionsFromParams(params map[string]string) (digest.Options, error) {
	opts := digest.DefaultOptions()
	if v, ok := params[ParamPattern]; ok {
		opts.Pattern = v
	}
	ints := []struct {
		key string
		dst *int
	}{
		{ParamMissedCleavages, &opts.MissedCleavages},
		{ParamMinLength, &opts.MinLength},
		{ParamMaxLength, &opts.MaxLength},
	}
	for _, f := range ints {
		v, ok := params[f.key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return digest.Options{}, fmt.Errorf("%w: %s=%q", digest.ErrInvalidRange, f.key, v)
		}
		*f.dst = n
	}
	return opts, nil
}
