package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type schoolApi struct {
	baseApi
	svc       school.Service
	enrolment enrolment.Service
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := schoolApi{
		baseApi:   baseApi{auth: auth, validate: deps.Validate},
		svc:       deps.SchoolSvc,
		enrolment: deps.EnrolmentSvc,
	}
	view := auth.require(user.ViewSchool)
	manage := auth.require(user.ManageSchool)

	// students
	sg := g.Group("/students", jwt)
	sg.GET("", api.queryStudents, view)
	sg.POST("", api.createStudent, manage)

	sdg := sg.Group("/:id", objectMiddleware(api.svc.GetStudent))
	sdg.GET("", api.retrieveStudent, view)
	sdg.PUT("", api.updateStudent, manage)
	sdg.DELETE("", api.destroyStudent, manage)
	sdg.GET("/subjects", api.queryStudentSubjects, view)
	sdg.POST("/subjects", api.assignStudentSubjects, manage)
	sdg.DELETE("/subjects/:subjectId", api.dropStudentSubject, manage)
	sdg.PUT("/subjects/:subjectId/custom", api.markStudentSubjectCustom, manage)

	// grades
	gg := g.Group("/grades", jwt)
	gg.GET("", api.queryGrades, view)
	gg.POST("", api.createGrade, manage)

	gdg := gg.Group("/:id", objectMiddleware(api.svc.GetGrade))
	gdg.GET("", api.retrieveGrade, view)
	gdg.PUT("", api.updateGrade, manage)
	gdg.DELETE("", api.destroyGrade, manage)
	gdg.GET("/subjects", api.queryGradeSubjects, view)
	gdg.POST("/sync", api.syncGrade, manage)
	gdg.PUT("/homeroom", api.assignHomeroomTeacher, manage)
	gdg.GET("/students", api.queryGradeStudents, view)

	// subjects
	bg := g.Group("/subjects", jwt)
	bg.GET("", api.querySubjects, view)
	bg.POST("", api.createSubject, manage)

	bdg := bg.Group("/:id", objectMiddleware(api.svc.GetSubject))
	bdg.GET("", api.retrieveSubject, view)
	bdg.PUT("", api.updateSubject, manage)
	bdg.DELETE("", api.destroySubject, manage)
	bdg.POST("/assign-to-grade/:gradeId", api.assignSubjectToGrade, manage)
	bdg.DELETE("/assign-to-grade/:gradeId", api.removeSubjectFromGrade, manage)
}

type (
	AssignHomeroomRequest struct {
		TeacherID string `json:"teacher_id" validate:"required,uuid"`
	}

	SyncGradeRequest struct {
		RemoveOrphaned bool `json:"remove_orphaned" query:"remove_orphaned"`
	}

	RemoveSubjectFromGradeRequest struct {
		RemoveInherited bool `query:"remove_inherited"`
	}

	RemoveSubjectFromGradeResponse struct {
		Deactivated int `json:"deactivated"`
	}

	StudentSubjectsRequest struct {
		ActiveOnly bool `query:"active_only"`
	}
)

// Students

func (api *schoolApi) createStudent(ctx echo.Context) error {
	var data school.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	student, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, student)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	filter := new(school.StudentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	student, err := contextObject[school.Student](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *schoolApi) updateStudent(ctx echo.Context) error {
	student, err := contextObject[school.Student](ctx)
	if err != nil {
		return err
	}

	var data school.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	student, err = api.svc.UpdateStudent(ctx.Request().Context(), student, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, student)
}

// destroyStudent archives the student. Archived students are deleted for good.
func (api *schoolApi) destroyStudent(ctx echo.Context) error {
	student, err := contextObject[school.Student](ctx)
	if err != nil {
		return err
	}

	if !student.IsArchived {
		if _, err = api.svc.ArchiveStudent(ctx.Request().Context(), student.ID); err != nil {
			return errors.Wrap(err, "archiving student")
		}
		return ctx.NoContent(http.StatusNoContent)
	}
	if err = api.svc.DeleteStudent(ctx.Request().Context(), student.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) queryStudentSubjects(ctx echo.Context) error {
	student, err := contextObject[school.Student](ctx)
	if err != nil {
		return err
	}
	var query StudentSubjectsRequest
	_ = ctx.Bind(&query)

	records, err := api.enrolment.ListStudentSubjects(ctx.Request().Context(), student.ID, query.ActiveOnly)
	if err != nil {
		return errors.Wrap(err, "listing student subjects")
	}
	if records == nil {
		records = []enrolment.StudentSubject{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *schoolApi) assignStudentSubjects(ctx echo.Context) error {
	student, err := contextObject[school.Student](ctx)
	if err != nil {
		return err
	}

	var data enrolment.AssignStudentSubjects
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignStudentSubjects")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	records, err := api.enrolment.AssignStudentSubjects(ctx.Request().Context(), student.ID, data)
	if err != nil {
		return errors.Wrap(err, "assigning student subjects")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *schoolApi) dropStudentSubject(ctx echo.Context) error {
	student, err := contextObject[school.Student](ctx)
	if err != nil {
		return err
	}

	record, err := api.enrolment.DropStudentSubject(ctx.Request().Context(), student.ID, ctx.Param("subjectId"))
	if err != nil {
		return errors.Wrap(err, "dropping student subject")
	}
	return ctx.JSON(http.StatusOK, record)
}

func (api *schoolApi) markStudentSubjectCustom(ctx echo.Context) error {
	student, err := contextObject[school.Student](ctx)
	if err != nil {
		return err
	}

	record, err := api.enrolment.MarkCustom(ctx.Request().Context(), student.ID, ctx.Param("subjectId"))
	if err != nil {
		return errors.Wrap(err, "marking student subject custom")
	}
	return ctx.JSON(http.StatusOK, record)
}

// Grades

func (api *schoolApi) createGrade(ctx echo.Context) error {
	var data school.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	grade, err := api.svc.CreateGrade(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, grade)
}

func (api *schoolApi) queryGrades(ctx echo.Context) error {
	filter := new(school.GradeFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Grade{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	grades, err := api.svc.QueryGrades(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []school.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *schoolApi) retrieveGrade(ctx echo.Context) error {
	grade, err := contextObject[school.Grade](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grade)
}

func (api *schoolApi) updateGrade(ctx echo.Context) error {
	grade, err := contextObject[school.Grade](ctx)
	if err != nil {
		return err
	}

	var data school.UpdateGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGrade")
	}
	if err = data.Validate(ctx.Request().Context(), grade, api.validate, api.svc); err != nil {
		return err
	}

	grade, err = api.svc.UpdateGrade(ctx.Request().Context(), grade, data)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.JSON(http.StatusOK, grade)
}

func (api *schoolApi) destroyGrade(ctx echo.Context) error {
	grade, err := contextObject[school.Grade](ctx)
	if err != nil {
		return err
	}

	if err = api.svc.DeleteGrade(ctx.Request().Context(), grade.ID); err != nil {
		if errors.Cause(err) == school.ErrGradeHasStudents {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) queryGradeSubjects(ctx echo.Context) error {
	grade, err := contextObject[school.Grade](ctx)
	if err != nil {
		return err
	}

	entries, err := api.enrolment.ListGradeSubjects(ctx.Request().Context(), grade.ID)
	if err != nil {
		return errors.Wrap(err, "listing grade subjects")
	}
	if entries == nil {
		entries = []enrolment.GradeSubject{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *schoolApi) syncGrade(ctx echo.Context) error {
	grade, err := contextObject[school.Grade](ctx)
	if err != nil {
		return err
	}
	var data SyncGradeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SyncGradeRequest")
	}

	res, err := api.enrolment.SyncGradeStudentSubjects(ctx.Request().Context(), grade.ID, data.RemoveOrphaned)
	if err != nil {
		return errors.Wrap(err, "syncing grade subjects")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *schoolApi) assignHomeroomTeacher(ctx echo.Context) error {
	grade, err := contextObject[school.Grade](ctx)
	if err != nil {
		return err
	}

	var data AssignHomeroomRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignHomeroomRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	grade, err = api.svc.AssignHomeroomTeacher(ctx.Request().Context(), grade.ID, data.TeacherID)
	if err != nil {
		return errors.Wrap(err, "assigning homeroom teacher")
	}
	return ctx.JSON(http.StatusOK, grade)
}

func (api *schoolApi) queryGradeStudents(ctx echo.Context) error {
	grade, err := contextObject[school.Grade](ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryStudents(ctx.Request().Context(), school.ActiveStudentsOf(grade.ID), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying grade students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

// Subjects

func (api *schoolApi) createSubject(ctx echo.Context) error {
	var data school.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	subject, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, subject)
}

func (api *schoolApi) querySubjects(ctx echo.Context) error {
	filter := new(school.SubjectFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Subject{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	subjects, err := api.svc.QuerySubjects(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *schoolApi) retrieveSubject(ctx echo.Context) error {
	subject, err := contextObject[school.Subject](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *schoolApi) updateSubject(ctx echo.Context) error {
	subject, err := contextObject[school.Subject](ctx)
	if err != nil {
		return err
	}

	var data school.UpdateSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err = data.Validate(ctx.Request().Context(), subject, api.validate, api.svc); err != nil {
		return err
	}

	subject, err = api.svc.UpdateSubject(ctx.Request().Context(), subject, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *schoolApi) destroySubject(ctx echo.Context) error {
	subject, err := contextObject[school.Subject](ctx)
	if err != nil {
		return err
	}

	if err = api.svc.DeleteSubject(ctx.Request().Context(), subject.ID); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) assignSubjectToGrade(ctx echo.Context) error {
	subject, err := contextObject[school.Subject](ctx)
	if err != nil {
		return err
	}

	var opts enrolment.AssignOptions
	if err = ctx.Bind(&opts); err != nil {
		return errors.Wrap(err, "binding to AssignOptions")
	}

	res, err := api.enrolment.AssignSubjectToGrade(ctx.Request().Context(), ctx.Param("gradeId"), subject.ID, opts)
	if err != nil {
		return errors.Wrap(err, "assigning subject to grade")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *schoolApi) removeSubjectFromGrade(ctx echo.Context) error {
	subject, err := contextObject[school.Subject](ctx)
	if err != nil {
		return err
	}
	var query RemoveSubjectFromGradeRequest
	if err = ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to RemoveSubjectFromGradeRequest")
	}

	n, err := api.enrolment.RemoveSubjectFromGrade(ctx.Request().Context(), ctx.Param("gradeId"), subject.ID, query.RemoveInherited)
	if err != nil {
		return errors.Wrap(err, "removing subject from grade")
	}
	return ctx.JSON(http.StatusOK, RemoveSubjectFromGradeResponse{Deactivated: n})
}
