/* errors.go
 * Contains the errors returned by the store and the helpers used to classify mongo write errors
 */

package store

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when the requested document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateSubmission is returned when a judge submission is already in the ledger
	ErrDuplicateSubmission = errors.New("submission already recorded")
	// ErrDuplicateSolve is returned when a side has already been credited a solve for a question
	ErrDuplicateSolve = errors.New("question already solved by side")
	// ErrStateConflict is returned when a conditional state transition did not apply
	ErrStateConflict = errors.New("document is not in the expected state")
)

// duplicateKeyMessage returns the server message of the first duplicate key write error in err
func duplicateKeyMessage(err error) (string, bool) {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 || e.Code == 12582 {
				return e.Message, true
			}
		}
	}
	if mongo.IsDuplicateKeyError(err) {
		return err.Error(), true
	}
	return "", false
}

// isDuplicateOn reports whether err is a duplicate key error raised by the named index
func isDuplicateOn(err error, index string) bool {
	msg, ok := duplicateKeyMessage(err)
	return ok && strings.Contains(msg, index)
}
