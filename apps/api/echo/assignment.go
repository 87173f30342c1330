package echoapi

import (
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/assignment"
	"github.com/mwalimu/darasa/core/authz"
	"github.com/mwalimu/darasa/core/classroom"
	"github.com/mwalimu/darasa/core/user"
	"github.com/mwalimu/darasa/storage/files"
)

var (
	errAssgNotFoundInCtx = errors.New("assignment object not found in echo.Context")

	assignmentSortFields = []string{"created_at", "title", "due_date"}
)

type assignmentApi struct {
	svc      assignment.Service
	roomSvc  classroom.Service
	userSvc  user.Service
	checker  *authz.Checker
	store    *files.LocalStore
	validate *validator.Validate
}

func registerAssignmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc assignment.Service,
	roomSvc classroom.Service,
	userSvc user.Service,
	checker *authz.Checker,
	store *files.LocalStore,
	validate *validator.Validate,
) {
	api := assignmentApi{
		svc:      svc,
		roomSvc:  roomSvc,
		userSvc:  userSvc,
		checker:  checker,
		store:    store,
		validate: validate,
	}

	// classroom-scoped endpoints
	rg := g.Group("/classrooms/:id/assignments", jwt)
	rg.POST("", api.create)
	rg.GET("", api.queryForClassroom)

	// assignment endpoints
	ag := g.Group("/assignments", jwt)
	ag.GET("", api.query)
	dg := ag.Group("/:id", api.objectMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/submissions", api.querySubmissions)
	dg.POST("/submit", api.submit)
	dg.POST("/remind", api.remind)

	// submission endpoints
	sg := g.Group("/submissions/:id", jwt)
	sg.GET("", api.retrieveSubmission)
	sg.PUT("/grade", api.grade)
	sg.GET("/files", api.queryFiles)

	// file endpoints
	fg := g.Group("/files/:id", jwt)
	fg.GET("", api.downloadFile)
	fg.DELETE("", api.destroyFile)
}

// objectMiddleware loads the assignment under :id into the context and
// rejects actors without read access.
func (api *assignmentApi) objectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, api.userSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == assignment.ErrNotFound {
					return errHTTPNotFound
				}
				return errors.Wrap(err, "finding assignment by ID")
			}

			allowed, err := api.checker.Allow(ctx.Request().Context(), ctxUsr, authz.ActionRead, a)
			if err != nil {
				return errors.Wrap(err, "checking assignment access")
			}
			if !allowed {
				return errHTTPNotFound
			}

			ctx.Set("object", a)
			return next(ctx)
		}
	}
}

func (api *assignmentApi) contextAssignment(ctx echo.Context) (assignment.Assignment, error) {
	a, ok := ctx.Get("object").(assignment.Assignment)
	if !ok {
		return assignment.Assignment{}, errors.Wrap(errAssgNotFoundInCtx, "retrieving object from context")
	}
	return a, nil
}

func (api *assignmentApi) requireWrite(ctx echo.Context, a assignment.Assignment) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	allowed, err := api.checker.Allow(ctx.Request().Context(), ctxUsr, authz.ActionWrite, a)
	if err != nil {
		return errors.Wrap(err, "checking assignment access")
	}
	if !allowed {
		return errHTTPForbidden
	}
	return nil
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	room, err := api.roomSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == classroom.ErrNotFound {
			return errHTTPNotFound
		}
		return errors.Wrap(err, "finding classroom by ID")
	}

	readable, err := api.checker.Allow(ctx.Request().Context(), ctxUsr, authz.ActionRead, room)
	if err != nil {
		return errors.Wrap(err, "checking classroom access")
	}
	if !readable {
		return errHTTPNotFound
	}
	writable, err := api.checker.Allow(ctx.Request().Context(), ctxUsr, authz.ActionWrite, room)
	if err != nil {
		return errors.Wrap(err, "checking classroom access")
	}
	if !writable {
		return errHTTPForbidden
	}

	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), room, ctxUsr.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) queryForClassroom(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	room, err := api.roomSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
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

	filter := &assignment.AssignmentFilter{ClassroomID: room.ID}
	if ctxUsr.IsStudent() {
		// students only see assignments they are targeted by
		filter.StudentID = ctxUsr.ID
	}
	ordering := new(Ordering)
	if err := ordering.Bind(ctx, assignmentSortFields...); err != nil {
		return err
	}

	assignments, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

// query lists the caller's assignments: created ones for teachers,
// targeted ones for students, everything for admins.
func (api *assignmentApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(assignment.AssignmentFilter)
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsTeacher():
		filter.CreatedBy = ctxUsr.ID
	default:
		filter.StudentID = ctxUsr.ID
	}
	ordering := new(Ordering)
	if err := ordering.Bind(ctx, assignmentSortFields...); err != nil {
		return err
	}

	assignments, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	a, err := api.contextAssignment(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	a, err := api.contextAssignment(ctx)
	if err != nil {
		return err
	}
	if err = api.requireWrite(ctx, a); err != nil {
		return err
	}

	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(api.validate, a); err != nil {
		return err
	}

	a, err = api.svc.Update(ctx.Request().Context(), a.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	a, err := api.contextAssignment(ctx)
	if err != nil {
		return err
	}
	if err = api.requireWrite(ctx, a); err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// querySubmissions returns all rows for teachers of the room,
// or the caller's own row for students.
func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	a, err := api.contextAssignment(ctx)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if ctxUsr.IsStudent() {
		sub, err := api.svc.SubmissionForStudent(ctx.Request().Context(), a, ctxUsr.ID)
		if err != nil {
			if errors.Cause(err) == assignment.ErrSubmissionNotFound {
				return errHTTPNotFound
			}
			return errors.Wrap(err, "finding student submission")
		}
		return ctx.JSON(http.StatusOK, []assignment.StudentAssignment{sub})
	}

	subs, err := api.svc.Submissions(ctx.Request().Context(), a)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assignment.StudentAssignment{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

// submit accepts a multipart form: a `content` field and optional
// `files` uploads. Every file is validated before any blob is written.
func (api *assignmentApi) submit(ctx echo.Context) error {
	a, err := api.contextAssignment(ctx)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsStudent() {
		return errHTTPForbidden
	}

	data := assignment.Submission{Content: ctx.FormValue("content")}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	var headers []*multipart.FileHeader
	if form, err := ctx.MultipartForm(); err == nil && form != nil {
		headers = form.File["files"]
	}
	for _, fh := range headers {
		if err := api.store.Validate(fh); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "files", Error: err.Error()})
		}
	}

	uploads := make([]assignment.NewSubmissionFile, 0, len(headers))
	for _, fh := range headers {
		up, err := api.store.Save(fh)
		if err != nil {
			for _, u := range uploads {
				_ = api.store.Remove(u.StoragePath)
			}
			return errors.Wrap(err, "saving upload")
		}
		uploads = append(uploads, up)
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), a, ctxUsr.ID, data, uploads)
	if err != nil {
		for _, u := range uploads {
			_ = api.store.Remove(u.StoragePath)
		}
		if errors.Cause(err) == assignment.ErrSubmissionNotFound {
			return errHTTPNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) remind(ctx echo.Context) error {
	a, err := api.contextAssignment(ctx)
	if err != nil {
		return err
	}
	if err = api.requireWrite(ctx, a); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	count, err := api.svc.Remind(ctx.Request().Context(), a, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "sending reminders")
	}
	return ctx.JSON(http.StatusOK, RemindResponse{Notified: count})
}

// contextSubmission loads the submission under :id and enforces access.
func (api *assignmentApi) contextSubmission(ctx echo.Context, action authz.Action) (assignment.StudentAssignment, error) {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return assignment.StudentAssignment{}, errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.GetSubmission(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == assignment.ErrSubmissionNotFound {
			return assignment.StudentAssignment{}, errHTTPNotFound
		}
		return assignment.StudentAssignment{}, errors.Wrap(err, "finding submission by ID")
	}

	allowed, err := api.checker.Allow(ctx.Request().Context(), ctxUsr, action, sub)
	if err != nil {
		return assignment.StudentAssignment{}, errors.Wrap(err, "checking submission access")
	}
	if !allowed {
		return assignment.StudentAssignment{}, errHTTPNotFound
	}
	return sub, nil
}

func (api *assignmentApi) retrieveSubmission(ctx echo.Context) error {
	sub, err := api.contextSubmission(ctx, authz.ActionRead)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

// grade records a teacher's grade; the submitting student cannot grade
// their own work.
func (api *assignmentApi) grade(ctx echo.Context) error {
	sub, err := api.contextSubmission(ctx, authz.ActionRead)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.ID == sub.StudentID && !ctxUsr.IsAdmin() {
		return errHTTPForbidden
	}

	var data assignment.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err = api.svc.Grade(ctx.Request().Context(), sub, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) queryFiles(ctx echo.Context) error {
	sub, err := api.contextSubmission(ctx, authz.ActionRead)
	if err != nil {
		return err
	}

	fls, err := api.svc.Files(ctx.Request().Context(), sub.ID)
	if err != nil {
		return errors.Wrap(err, "querying files")
	}
	if fls == nil {
		fls = []assignment.SubmissionFile{}
	}
	return ctx.JSON(http.StatusOK, fls)
}

// contextFile loads the file under :id and enforces access.
func (api *assignmentApi) contextFile(ctx echo.Context, action authz.Action) (assignment.SubmissionFile, error) {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return assignment.SubmissionFile{}, errors.Wrap(err, "getting context user")
	}

	f, err := api.svc.GetFile(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == assignment.ErrFileNotFound {
			return assignment.SubmissionFile{}, errHTTPNotFound
		}
		return assignment.SubmissionFile{}, errors.Wrap(err, "finding file by ID")
	}

	allowed, err := api.checker.Allow(ctx.Request().Context(), ctxUsr, action, f)
	if err != nil {
		return assignment.SubmissionFile{}, errors.Wrap(err, "checking file access")
	}
	if !allowed {
		return assignment.SubmissionFile{}, errHTTPNotFound
	}
	return f, nil
}

// downloadFile streams the blob under the original file name.
func (api *assignmentApi) downloadFile(ctx echo.Context) error {
	f, err := api.contextFile(ctx, authz.ActionRead)
	if err != nil {
		return err
	}

	blob, err := api.store.Open(f.StoragePath)
	if err != nil {
		return errors.Wrap(err, "opening blob")
	}
	defer func() { _ = blob.Close() }()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+f.FileName+`"`)
	return ctx.Stream(http.StatusOK, f.MimeType, blob)
}

// destroyFile removes a file record and its blob. Only the classroom's
// teachers (or an admin) may delete; the submitting student can read
// their file but not remove it once uploaded.
func (api *assignmentApi) destroyFile(ctx echo.Context) error {
	f, err := api.contextFile(ctx, authz.ActionRead)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	allowed, err := api.checker.Allow(ctx.Request().Context(), ctxUsr, authz.ActionDelete, f)
	if err != nil {
		return errors.Wrap(err, "checking file access")
	}
	if !allowed {
		return errHTTPForbidden
	}

	if err := api.svc.DeleteFile(ctx.Request().Context(), f.ID); err != nil {
		return errors.Wrap(err, "deleting file")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type RemindResponse struct {
	Notified int `json:"notified"`
}
