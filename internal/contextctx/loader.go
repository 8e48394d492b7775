// Package contextctx loads the per-thread business configuration needed
// to build worker payloads, joined from the client, mandate and ERP
// documents. The session registry caches the result per thread with a
// TTL.
package contextctx

import (
	"context"
	"fmt"

	"github.com/kabsikabs/pinnokio/internal/errs"
	"github.com/kabsikabs/pinnokio/internal/store"
)

// Context is the per-thread business configuration.
type Context struct {
	UserID               string
	CompanyID            string
	ClientUUID           string
	MandatePath          string
	DMSSystem            string
	CommunicationMode    string
	LogCommunicationMode string
	BankERP              string
	DriveSpaceRoot       string
	CompanyName          string
}

// Empty reports whether the Context lacks the minimum fields required
// before any long-process dispatch.
func (c *Context) Empty() bool {
	return c == nil || c.MandatePath == ""
}

// Loader produces a fully populated Context for a thread by joining the
// client, mandate and ERP documents. It holds no cache itself; caching
// with a TTL is the session registry's responsibility, since the cache
// is scoped to a session.
type Loader struct {
	docs store.DocumentStore
}

func NewLoader(docs store.DocumentStore) *Loader {
	return &Loader{docs: docs}
}

// Load resolves a Context for (userID, companyID), applying the
// deterministic fallback client UUID and per-field defaults. It returns
// an errs.KindContextLoad error when a store read fails or no mandate can
// be resolved at all; otherwise it returns a best-effort Context.
func (l *Loader) Load(ctx context.Context, userID, companyID string) (*Context, error) {
	clientUUID := ""
	client, err := l.docs.GetClientRecord(ctx, userID)
	if err != nil {
		return nil, errs.ContextLoad("failed to read client record", err)
	}
	if client != nil {
		clientUUID = client.ClientUUID
	} else {
		clientUUID = fallbackClientUUID(userID)
	}

	mandate, err := l.docs.GetMandateForCompany(ctx, clientUUID, companyID)
	if err != nil {
		return nil, errs.ContextLoad("failed to read mandate record", err)
	}
	if mandate == nil {
		return nil, errs.ContextLoad(
			fmt.Sprintf("no mandate found for client %s / company %s", clientUUID, companyID), nil)
	}

	erp, err := l.docs.GetERPForMandate(ctx, mandate.MandateID)
	if err != nil {
		return nil, errs.ContextLoad("failed to read erp record", err)
	}

	c := &Context{
		UserID:               userID,
		CompanyID:            companyID,
		ClientUUID:           clientUUID,
		MandatePath:          mandate.MandatePath,
		DMSSystem:            orDefault(mandate.DMSSystem, "google_drive"),
		CommunicationMode:    orDefault(mandate.CommMode, "webhook"),
		LogCommunicationMode: orDefault(mandate.LogCommMode, "firebase"),
		DriveSpaceRoot:       mandate.DriveSpaceRoot,
		CompanyName:          mandate.CompanyName,
	}
	if erp != nil {
		c.BankERP = erp.BankERP
	}
	return c, nil
}

// fallbackClientUUID is the deterministic stand-in used when the client
// document is absent.
func fallbackClientUUID(userID string) string {
	prefix := userID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "fallback_" + prefix
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
