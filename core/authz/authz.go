// Package authz is the single access-control predicate layer: every
// handler answers "may this actor act on this resource?" here, instead
// of re-implementing role and ownership checks per endpoint.
package authz

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core/assignment"
	"github.com/mwalimu/darasa/core/classroom"
	"github.com/mwalimu/darasa/core/user"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

type Checker struct {
	roomSvc classroom.Service
	assgSvc assignment.Service
}

func NewChecker(roomSvc classroom.Service, assgSvc assignment.Service) *Checker {
	return &Checker{roomSvc: roomSvc, assgSvc: assgSvc}
}

// Allow evaluates the predicate for (actor, action, resource).
// Unknown resource types are denied.
func (c *Checker) Allow(ctx context.Context, actor user.User, action Action, resource interface{}) (bool, error) {
	// admin override, uniform across resources
	if actor.IsAdmin() {
		return true, nil
	}

	switch res := resource.(type) {
	case classroom.Classroom:
		return c.allowClassroom(ctx, actor, action, res)
	case assignment.Assignment:
		return c.allowAssignment(ctx, actor, action, res)
	case assignment.StudentAssignment:
		return c.allowSubmission(ctx, actor, action, res)
	case assignment.SubmissionFile:
		return c.allowFile(ctx, actor, action, res)
	}
	return false, nil
}

// allowClassroom: the creator and teacher members may read and write;
// student members may read.
func (c *Checker) allowClassroom(ctx context.Context, actor user.User, action Action, room classroom.Classroom) (bool, error) {
	if room.CreatedBy == actor.ID {
		return true, nil
	}
	teaches, err := c.roomSvc.IsTeacher(ctx, room.ID, actor.ID)
	if err != nil {
		return false, errors.Wrap(err, "checking teacher membership")
	}
	if teaches {
		return true, nil
	}
	if action == ActionRead {
		enrolled, err := c.roomSvc.IsStudent(ctx, room.ID, actor.ID)
		if err != nil {
			return false, errors.Wrap(err, "checking student membership")
		}
		return enrolled, nil
	}
	return false, nil
}

// allowAssignment inherits the parent classroom's teacher membership for
// writes; enrolled students may read.
func (c *Checker) allowAssignment(ctx context.Context, actor user.User, action Action, a assignment.Assignment) (bool, error) {
	room, err := c.roomSvc.GetByID(ctx, a.ClassroomID)
	if err != nil {
		return false, errors.Wrap(err, "finding parent classroom")
	}
	return c.allowClassroom(ctx, actor, action, room)
}

// allowSubmission: the submitting student owns their row, except for
// deletion; any teacher of the parent classroom may read, write (grade)
// and delete.
func (c *Checker) allowSubmission(ctx context.Context, actor user.User, action Action, sub assignment.StudentAssignment) (bool, error) {
	if sub.StudentID == actor.ID && action != ActionDelete {
		return true, nil
	}
	a, err := c.assgSvc.GetByID(ctx, sub.AssignmentID)
	if err != nil {
		return false, errors.Wrap(err, "finding parent assignment")
	}
	return c.allowAssignment(ctx, actor, ActionWrite, a)
}

// allowFile follows the file's parent submission.
func (c *Checker) allowFile(ctx context.Context, actor user.User, action Action, f assignment.SubmissionFile) (bool, error) {
	sub, err := c.assgSvc.GetSubmission(ctx, f.StudentAssignmentID)
	if err != nil {
		return false, errors.Wrap(err, "finding parent submission")
	}
	return c.allowSubmission(ctx, actor, action, sub)
}
