package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/analytics"
	"github.com/mwalimu/darasa/core/authz"
	"github.com/mwalimu/darasa/core/classroom"
	"github.com/mwalimu/darasa/core/user"
)

var (
	errRoomNotFoundInCtx = errors.New("classroom object not found in echo.Context")
	errMemberNotTeacher  = "user is not a teacher"
	errMemberNotStudent  = "user is not a student"

	classroomSortFields = []string{"created_at", "name"}
)

type classroomApi struct {
	svc          classroom.Service
	userSvc      user.Service
	analyticsSvc analytics.Service
	checker      *authz.Checker
	validate     *validator.Validate
}

func registerClassroomAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc classroom.Service,
	userSvc user.Service,
	analyticsSvc analytics.Service,
	checker *authz.Checker,
	validate *validator.Validate,
) {
	api := classroomApi{
		svc:          svc,
		userSvc:      userSvc,
		analyticsSvc: analyticsSvc,
		checker:      checker,
		validate:     validate,
	}

	cg := g.Group("/classrooms", jwt)
	cg.POST("", api.create, roleMiddleware(user.RoleTeacher))
	cg.GET("", api.query)

	// detail endpoints; the middleware loads the classroom and enforces
	// read access before anything else, so outsiders get 404 without
	// learning whether the room exists
	dg := cg.Group("/:id", api.objectMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/stats", api.stats)

	dg.GET("/teachers", api.queryTeachers)
	dg.POST("/teachers", api.addTeacher)
	dg.DELETE("/teachers/:userID", api.removeTeacher)
	dg.GET("/students", api.queryStudents)
	dg.POST("/students", api.addStudent)
	dg.DELETE("/students/:userID", api.removeStudent)
}

// objectMiddleware loads the classroom under :id into the context and
// rejects actors without read access.
func (api *classroomApi) objectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, api.userSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			room, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == classroom.ErrNotFound {
					return errHTTPNotFound
				}
				return errors.Wrap(err, "finding classroom by ID")
			}

			allowed, err := api.checker.Allow(ctx.Request().Context(), ctxUsr, authz.ActionRead, room)
			if err != nil {
				return errors.Wrap(err, "checking classroom access")
			}
			if !allowed {
				return errHTTPNotFound
			}

			ctx.Set("object", room)
			return next(ctx)
		}
	}
}

func (api *classroomApi) contextRoom(ctx echo.Context) (classroom.Classroom, error) {
	room, ok := ctx.Get("object").(classroom.Classroom)
	if !ok {
		return classroom.Classroom{}, errors.Wrap(errRoomNotFoundInCtx, "retrieving object from context")
	}
	return room, nil
}

// requireWrite rejects actors without write access to the room.
func (api *classroomApi) requireWrite(ctx echo.Context, room classroom.Classroom) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	allowed, err := api.checker.Allow(ctx.Request().Context(), ctxUsr, authz.ActionWrite, room)
	if err != nil {
		return errors.Wrap(err, "checking classroom access")
	}
	if !allowed {
		return errHTTPForbidden
	}
	return nil
}

// Handlers

func (api *classroomApi) create(ctx echo.Context) error {
	var data classroom.NewClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassroom")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	room, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return ctx.JSON(http.StatusCreated, room)
}

// query scopes the listing to the caller: admins see everything,
// teachers their classrooms, students their enrollments.
func (api *classroomApi) query(ctx echo.Context) error {
	filter := new(classroom.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []classroom.Classroom{})
	}
	filter.Clean()
	ordering := new(Ordering)
	if err := ordering.Bind(ctx, classroomSortFields...); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsTeacher():
		filter.TeacherID = ctxUsr.ID
	default:
		filter.StudentID = ctxUsr.ID
	}

	rooms, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	if rooms == nil {
		rooms = []classroom.Classroom{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	room, err := api.contextRoom(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *classroomApi) update(ctx echo.Context) error {
	room, err := api.contextRoom(ctx)
	if err != nil {
		return err
	}
	if err = api.requireWrite(ctx, room); err != nil {
		return err
	}

	var data classroom.UpdateClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClassroom")
	}
	if err := data.Validate(api.validate, room); err != nil {
		return err
	}

	room, err = api.svc.Update(ctx.Request().Context(), room.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating classroom")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *classroomApi) destroy(ctx echo.Context) error {
	room, err := api.contextRoom(ctx)
	if err != nil {
		return err
	}
	if err = api.requireWrite(ctx, room); err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), room.ID); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) stats(ctx echo.Context) error {
	room, err := api.contextRoom(ctx)
	if err != nil {
		return err
	}
	if err = api.requireWrite(ctx, room); err != nil {
		return err
	}

	stats, err := api.analyticsSvc.ForClassroom(ctx.Request().Context(), room)
	if err != nil {
		return errors.Wrap(err, "aggregating classroom stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *classroomApi) queryTeachers(ctx echo.Context) error {
	return api.queryMembers(ctx, api.svc.Teachers)
}

func (api *classroomApi) queryStudents(ctx echo.Context) error {
	return api.queryMembers(ctx, api.svc.Students)
}

func (api *classroomApi) queryMembers(ctx echo.Context, query func(ctx context.Context, classroomID string) ([]classroom.Member, error)) error {
	room, err := api.contextRoom(ctx)
	if err != nil {
		return err
	}

	members, err := query(ctx.Request().Context(), room.ID)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []classroom.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *classroomApi) addTeacher(ctx echo.Context) error {
	return api.addMember(ctx, user.RoleTeacher)
}

func (api *classroomApi) addStudent(ctx echo.Context) error {
	return api.addMember(ctx, user.RoleStudent)
}

// addMember adds a member after checking the target user holds the
// expected role.
func (api *classroomApi) addMember(ctx echo.Context, role string) error {
	room, err := api.contextRoom(ctx)
	if err != nil {
		return err
	}
	if err = api.requireWrite(ctx, room); err != nil {
		return err
	}

	var data classroom.AddMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddMember")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.userSvc.GetByID(ctx.Request().Context(), data.UserID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "user not found"})
		}
		return errors.Wrap(err, "finding user by ID")
	}

	if role == user.RoleTeacher {
		if !usr.IsTeacher() {
			return core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: errMemberNotTeacher})
		}
		err = api.svc.AddTeacher(ctx.Request().Context(), room.ID, usr.ID)
	} else {
		if !usr.IsStudent() {
			return core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: errMemberNotStudent})
		}
		err = api.svc.AddStudent(ctx.Request().Context(), room.ID, usr.ID)
	}
	if err != nil {
		return err
	}
	return ctx.NoContent(http.StatusCreated)
}

func (api *classroomApi) removeTeacher(ctx echo.Context) error {
	return api.removeMember(ctx, api.svc.RemoveTeacher)
}

func (api *classroomApi) removeStudent(ctx echo.Context) error {
	return api.removeMember(ctx, api.svc.RemoveStudent)
}

func (api *classroomApi) removeMember(ctx echo.Context, remove func(ctx context.Context, classroomID, userID string) error) error {
	room, err := api.contextRoom(ctx)
	if err != nil {
		return err
	}
	if err = api.requireWrite(ctx, room); err != nil {
		return err
	}

	if err := remove(ctx.Request().Context(), room.ID, ctx.Param("userID")); err != nil {
		if errors.Cause(err) == classroom.ErrNotMember {
			return errHTTPNotFound
		}
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}
