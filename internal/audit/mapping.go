package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// Method overrides where the generic verb would be misleading.
var methodOverrides = map[string]ActionResource{
	"/member.auth.v1.AuthService/RevokeSessions":            {Action: "sessions_revoked", Resource: "session"},
	"/member.auth.v1.AuthService/ChangePassword":            {Action: "password_changed", Resource: "credential"},
	"/member.auth.v1.PasskeyService/CompleteRegistration":   {Action: "register", Resource: "passkey"},
	"/member.auth.v1.PasskeyService/CompleteAuthentication": {Action: "login", Resource: "passkey"},
	"/member.auth.v1.PasskeyService/StartRegistration":      {Action: "register_start", Resource: "passkey"},
	"/member.auth.v1.PasskeyService/StartAuthentication":    {Action: "login_start", Resource: "passkey"},
	"/member.auth.v1.AccountService/RevokeSession":          {Action: "session_revoked", Resource: "session"},
}

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /member.auth.v1.PasskeyService/ListPasskeys).
// Action is a verb: get, list, create, update, delete, or a lowercase method name for others.
// Resource is derived from the service name (e.g. PasskeyService -> passkey).
func ParseFullMethod(fullMethod string) ActionResource {
	if ar, ok := methodOverrides[fullMethod]; ok {
		return ar
	}
	// fullMethod format: /package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(beforeSlash[dot+1:])}
}

func serviceToResource(serviceName string) string {
	// AuthService -> auth, PasskeyService -> passkey
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	switch {
	case strings.HasPrefix(method, "Get") && method != "Get":
		return "get"
	case strings.HasPrefix(method, "List"):
		return "list"
	case strings.HasPrefix(method, "Create"):
		return "create"
	case strings.HasPrefix(method, "Update"):
		return "update"
	case strings.HasPrefix(method, "Delete"):
		return "delete"
	case strings.HasPrefix(method, "Register"):
		return "register"
	case strings.HasPrefix(method, "Revoke"):
		return "revoke"
	default:
		return strings.ToLower(method)
	}
}
