package members

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RegisterMembersRoutes mounts the membership routes on a router.
func RegisterMembersRoutes[T any](app router.Router[T], opts ...MembersControllerOption) {

	controller := NewMembersController(opts...)

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("members.register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("members.register.post")

	app.Get(controller.Routes.ProfileEdit, controller.ProfileEditShow).
		SetName("members.profile-edit.get")
	app.Post(controller.Routes.ProfileEdit, controller.ProfileEditSave).
		SetName("members.profile-edit.post")

	app.Get(controller.Routes.Verify, controller.VerifyProfile).
		SetName("members.verify.get")

	app.Get(fmt.Sprintf("%s/:guid", controller.Routes.ProfileView), controller.ProfileView).
		SetName("members.profile-view.get")

	app.Get(controller.Routes.Base, controller.DefaultRoute).
		SetName("members.default")
}

type MembersControllerRoutes struct {
	Base        string
	Register    string
	ProfileEdit string
	ProfileView string
	Verify      string
	Login       string
}

type MembersControllerViews struct {
	Register    string
	ProfileEdit string
	ProfileView string
	Verify      string
}

type MembersController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Codec        *TokenCodec
	Transitional *TransitionalCodec
	Writer       *SessionWriter
	Routes       *MembersControllerRoutes
	Views        *MembersControllerViews
	ErrorHandler router.ErrorHandler
}

type MembersControllerOption func(*MembersController) *MembersController

func WithControllerRepo(repo RepositoryManager) MembersControllerOption {
	return func(c *MembersController) *MembersController {
		c.Repo = repo
		return c
	}
}

func WithControllerCodec(codec *TokenCodec) MembersControllerOption {
	return func(c *MembersController) *MembersController {
		c.Codec = codec
		return c
	}
}

func WithControllerTransitionalCodec(codec *TransitionalCodec) MembersControllerOption {
	return func(c *MembersController) *MembersController {
		c.Transitional = codec
		return c
	}
}

func WithControllerLogger(logger Logger) MembersControllerOption {
	return func(c *MembersController) *MembersController {
		c.Logger = logger
		return c
	}
}

func NewMembersController(opts ...MembersControllerOption) *MembersController {
	c := &MembersController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Writer:       NewSessionWriter(CookieAuthorization),
		Routes: &MembersControllerRoutes{
			Base:        "/",
			Register:    "/profile/register",
			ProfileEdit: "/profile/edit",
			ProfileView: "/profile",
			Verify:      "/profile/verify",
			Login:       "/login",
		},
		Views: &MembersControllerViews{
			Register:    "members/register",
			ProfileEdit: "members/profile_edit",
			ProfileView: "members/profile_view",
			Verify:      "members/verify",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in members controller...")
	}

	if c.Codec == nil {
		panic("Missing TokenCodec in members controller...")
	}

	return c
}

// session rebuilds the request scoped session from the incoming cookies.
func (a *MembersController) session(ctx router.Context) *Session {
	session := NewSession(a.Codec, a.Writer.ReadAuthorizationCookie(ctx), WithSessionLogger(a.Logger))

	if a.Transitional == nil {
		return session
	}

	if raw := ctx.Cookies(CookieTransitional); raw != "" {
		payload, err := a.Transitional.Decode(raw)
		if err != nil {
			a.Logger.Debug("transitional cookie did not decode", "error", err)
			return session
		}
		session.SetTransitional(payload)
	}

	return session
}

// DefaultRoute sends authorized members to their profile, everyone else to login.
func (a *MembersController) DefaultRoute(ctx router.Context) error {
	session := a.session(ctx)

	if session.HasAuthorization() {
		return ctx.Redirect(a.Routes.ProfileEdit, fiber.StatusFound)
	}

	return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
}

// RegisterPayload is the registration form payload.
type RegisterPayload struct {
	Username    string `form:"username" json:"username"`
	DisplayName string `form:"display_name" json:"display_name"`
	Email       string `form:"email" json:"email"`
	Phone       string `form:"phone_number" json:"phone_number"`
	Password    string `form:"password" json:"password"`

	// Transitional relaxes the password requirement: a provider already
	// vouched for the identity. Set by the controller, never bound from the form.
	Transitional bool `form:"-" json:"-"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	passwordRules := []validation.Rule{
		validation.Required,
		validation.Length(10, 100),
	}
	if r.Transitional {
		passwordRules = []validation.Rule{
			validation.Length(10, 100),
		}
	}

	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(0, UsernameMaxLength)),
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Length(0, 20)),
		validation.Field(&r.Password, passwordRules...),
	)
}

func (a *MembersController) RegistrationShow(ctx router.Context) error {
	session := a.session(ctx)

	record := &RegisterPayload{}
	if t := session.Transitional(); t != nil {
		record.Username = usernameCandidate("", t.Name, t.Email)
		record.DisplayName = t.Name
		record.Email = t.Email
	}

	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors":       map[string]string{},
		"record":       record,
		"transitional": session.IsTransitional(),
	})
}

func (a *MembersController) RegistrationCreate(ctx router.Context) error {
	session := a.session(ctx)
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		errs := map[string]string{}
		errs["form"] = "Failed to parse form"
		a.Logger.Error("register account parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"errors":       errs,
			"record":       payload,
			"transitional": session.IsTransitional(),
		})
	}

	payload.Transitional = session.IsTransitional()

	if err := payload.Validate(); err != nil {
		errs := FormatValidationErrorToMap(err)
		a.Logger.Error("register account validate payload: ", "error", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Register, router.ViewContext{
			"record":       payload,
			"validation":   errs,
			"transitional": session.IsTransitional(),
		})
	}

	if a.Debug {
		fmt.Println("======= MEMBERS REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	req := RegisterAccountMessage{
		Username:     payload.Username,
		DisplayName:  payload.DisplayName,
		Email:        payload.Email,
		Phone:        payload.Phone,
		Password:     payload.Password,
		Transitional: session.ConsumeTransitional(),
	}

	var account *Account
	req.OnResponse = func(a *Account) { account = a }

	registerAccount := NewRegisterAccountHandler(a.Repo, a.Logger)
	if err := registerAccount.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register account error: ", "error", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error registering account",
		}).Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": []string{err.Error()},
		})
	}

	if err := session.SetAuthorization(account); err != nil {
		a.Logger.Error("register account authorization error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	// the transitional payload was consumed; its cookie must not survive to
	// seed a second account
	a.clearTransitionalCookie(ctx)
	a.Writer.WriteAuthorizationCookie(ctx, session)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Successful registration",
	}).Redirect(a.Routes.ProfileEdit, fiber.StatusSeeOther)
}

// ProfileEditPayload holds profile edit form values.
type ProfileEditPayload struct {
	DisplayName string `form:"display_name" json:"display_name"`
	Email       string `form:"email" json:"email"`
	Phone       string `form:"phone_number" json:"phone_number"`
}

// Validate will validate the payload
func (r ProfileEditPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Length(0, 20)),
	)
}

func (a *MembersController) ProfileEditShow(ctx router.Context) error {
	session := a.session(ctx)

	account, err := a.requireAccount(ctx, session)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	return ctx.Render(a.Views.ProfileEdit, router.ViewContext{
		"errors": map[string]string{},
		"record": &ProfileEditPayload{
			DisplayName: account.DisplayName,
			Email:       account.Email,
			Phone:       account.Phone,
		},
	})
}

func (a *MembersController) ProfileEditSave(ctx router.Context) error {
	session := a.session(ctx)

	account, err := a.requireAccount(ctx, session)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	payload := new(ProfileEditPayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("profile edit parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.ProfileEdit, router.ViewContext{
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		errs := FormatValidationErrorToMap(err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.ProfileEdit, router.ViewContext{
			"record":     payload,
			"validation": errs,
		})
	}

	account.DisplayName = payload.DisplayName
	account.Email = payload.Email
	account.Phone = NormalizePhone(payload.Phone)

	if _, err := a.Repo.Accounts().Save(ctx.Context(), account); err != nil {
		a.Logger.Error("profile edit save: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error saving profile",
		}).Render(a.Views.ProfileEdit, router.ViewContext{
			"record": payload,
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Profile updated",
	}).Redirect(a.Routes.ProfileEdit, fiber.StatusSeeOther)
}

// VerifyProfile consumes a single use verification code from the query string.
func (a *MembersController) VerifyProfile(ctx router.Context) error {
	code := ctx.Query("code", "")

	verify := NewAccountVerifyHandler(a.Repo, a.Logger)

	var resp *AccountVerifyResponse
	msg := AccountVerifyMessage{
		Code:       code,
		OnResponse: func(r *AccountVerifyResponse) { resp = r },
	}

	if err := verify.Execute(ctx.Context(), msg); err != nil {
		if IsInvalidAuthorizationRequest(err) {
			a.Logger.Info("account verification rejected", "error", err)
			return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Verify, router.ViewContext{
				"verified": false,
				"error":    err.Error(),
			})
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.Verify, router.ViewContext{
		"verified": true,
		"guid":     resp.GUID,
	})
}

func (a *MembersController) ProfileView(ctx router.Context) error {
	guid := ctx.Param("guid")

	account, err := a.Repo.Accounts().GetByGUID(ctx.Context(), guid)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).Render(a.Views.ProfileView, router.ViewContext{
			"error": "Invalid profile",
		})
	}

	avatar := ""
	if metas, err := a.Repo.AccountMeta().GetMeta(ctx.Context(), account.ID, MetaKeyAvatar); err == nil && len(metas) > 0 {
		avatar = metas[0].Value
	}

	return ctx.Render(a.Views.ProfileView, router.ViewContext{
		"display_name": account.DisplayName,
		"email":        account.Email,
		"avatar":       avatar,
	})
}

// requireAccount resolves the session's account or redirects to login. A nil
// account with a nil error means a response was already written.
func (a *MembersController) requireAccount(ctx router.Context, session *Session) (*Account, error) {
	if !session.HasAuthorization() {
		a.Writer.WriteAuthorizationCookie(ctx, session)
		return nil, ctx.Redirect(a.Routes.Login, fiber.StatusFound)
	}

	record := session.GetAuthorization()
	account, err := a.Repo.Accounts().GetByGUID(ctx.Context(), record.GUID)
	if err != nil {
		if !goerrors.IsNotFound(err) {
			// storage failure; keep the cookie and surface the error
			return nil, a.ErrorHandler(ctx, err)
		}
		// the cookie outlived the account; drop the authorization
		session.Clear()
		a.Writer.WriteAuthorizationCookie(ctx, session)
		return nil, ctx.Redirect(a.Routes.Login, fiber.StatusFound)
	}

	reqCtx := WithContext(ctx.Context(), account)
	ctx.SetContext(WithAuthorizationContext(reqCtx, record))

	return account, nil
}

func (a *MembersController) clearTransitionalCookie(ctx router.Context) {
	a.Writer.clearCookie(ctx, CookieTransitional)
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into a field map
// the templates can render next to each input.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["form"] = err.Error()
	return out
}
