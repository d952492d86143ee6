package etderr

import (
	"errors"
	"fmt"
)

// Kind klassifiziert einen Fehler der Katalog-Kernschicht.
type Kind string

const (
	ValidationFailed Kind = "validation_failed"
	CreationFailed   Kind = "creation_failed"
	DeletionFailed   Kind = "deletion_failed"
	RecordNotFound   Kind = "record_not_found"
	CommentNotFound  Kind = "comment_not_found"
	FavoriteNotFound Kind = "favorite_not_found"
	UserNotFound     Kind = "user_not_found"
	AlreadyLiked     Kind = "already_liked"
	AlreadyDisliked  Kind = "already_disliked"
	NotLiked         Kind = "not_liked"
	NotDisliked      Kind = "not_disliked"
	InvalidPath      Kind = "invalid_path"
)

// Failure ist der typisierte Fehler, den Sagas und Zustandsmaschine an Aufrufer melden.
// Err hält die interne Ursache und wird nur geloggt, nie an Clients weitergegeben.
type Failure struct {
	Kind Kind
	Msg  string
	Err  error
}

func (f *Failure) Error() string {
	msg := f.Msg
	if msg == "" {
		msg = string(f.Kind)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Is vergleicht nur die Kind, damit errors.Is(err, ErrAlreadyLiked) unabhängig von Msg funktioniert.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Kind == f.Kind
}

// Sentinels für errors.Is.
var (
	ErrValidationFailed = &Failure{Kind: ValidationFailed}
	ErrCreationFailed   = &Failure{Kind: CreationFailed}
	ErrDeletionFailed   = &Failure{Kind: DeletionFailed}
	ErrRecordNotFound   = &Failure{Kind: RecordNotFound}
	ErrCommentNotFound  = &Failure{Kind: CommentNotFound}
	ErrFavoriteNotFound = &Failure{Kind: FavoriteNotFound}
	ErrUserNotFound     = &Failure{Kind: UserNotFound}
	ErrAlreadyLiked     = &Failure{Kind: AlreadyLiked}
	ErrAlreadyDisliked  = &Failure{Kind: AlreadyDisliked}
	ErrNotLiked         = &Failure{Kind: NotLiked}
	ErrNotDisliked      = &Failure{Kind: NotDisliked}
	ErrInvalidPath      = &Failure{Kind: InvalidPath}
)

// New erzeugt einen Failure ohne Ursache.
func New(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap erzeugt einen Failure mit interner Ursache.
func Wrap(kind Kind, err error, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf liefert die Kind des äußersten Failure in der Kette, sonst "".
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsNotFound meldet, ob err einer der NotFound-Kinds ist.
func IsNotFound(err error) bool {
	switch KindOf(err) {
	case RecordNotFound, CommentNotFound, FavoriteNotFound, UserNotFound:
		return true
	}
	return false
}

// IsReactionConflict meldet Zustandskonflikte der Reaktions-Zustandsmaschine.
func IsReactionConflict(err error) bool {
	switch KindOf(err) {
	case AlreadyLiked, AlreadyDisliked, NotLiked, NotDisliked:
		return true
	}
	return false
}
