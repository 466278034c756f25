package domain

// Field names a user- or server-editable job attribute that can be patched
// independently of the job's status.
type Field string

// Patchable fields
const (
	FieldTitle Field = "title"
	FieldScore Field = "score"
	FieldAudio Field = "audio"
)

// JobPatch is a partial update. Nil pointers leave the field untouched;
// ClearAudio removes the audio artifact.
type JobPatch struct {
	Title      *string
	Score      *int
	Audio      *AudioArtifact
	ClearAudio bool
}

// Fields lists the fields the patch touches.
func (p JobPatch) Fields() []Field {
	var fields []Field
	if p.Title != nil {
		fields = append(fields, FieldTitle)
	}
	if p.Score != nil {
		fields = append(fields, FieldScore)
	}
	if p.Audio != nil || p.ClearAudio {
		fields = append(fields, FieldAudio)
	}
	return fields
}

// Empty reports whether the patch touches nothing.
func (p JobPatch) Empty() bool {
	return len(p.Fields()) == 0
}

// Apply writes the touched fields onto job.
func (p JobPatch) Apply(job *Job) {
	if p.Title != nil {
		job.Title = *p.Title
	}
	if p.Score != nil {
		s := *p.Score
		job.Score = &s
	}
	if p.ClearAudio {
		job.Audio = nil
	} else if p.Audio != nil {
		job.Audio = p.Audio.Clone()
	}
}

// FieldEqual reports whether a and b hold the same value for field f.
func FieldEqual(a, b Job, f Field) bool {
	switch f {
	case FieldTitle:
		return a.Title == b.Title
	case FieldScore:
		if a.Score == nil || b.Score == nil {
			return a.Score == nil && b.Score == nil
		}
		return *a.Score == *b.Score
	case FieldAudio:
		if a.Audio == nil || b.Audio == nil {
			return a.Audio == nil && b.Audio == nil
		}
		if a.Audio.URL != b.Audio.URL || a.Audio.ObjectPath != b.Audio.ObjectPath {
			return false
		}
		if a.Audio.ExpiresAt == nil || b.Audio.ExpiresAt == nil {
			return a.Audio.ExpiresAt == nil && b.Audio.ExpiresAt == nil
		}
		return a.Audio.ExpiresAt.Equal(*b.Audio.ExpiresAt)
	default:
		return false
	}
}

// CopyField copies field f from src onto dst.
func CopyField(dst *Job, src Job, f Field) {
	switch f {
	case FieldTitle:
		dst.Title = src.Title
	case FieldScore:
		if src.Score == nil {
			dst.Score = nil
		} else {
			s := *src.Score
			dst.Score = &s
		}
	case FieldAudio:
		dst.Audio = src.Audio.Clone()
	}
}
