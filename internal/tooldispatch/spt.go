package tooldispatch

import (
	"context"
	"fmt"

	"github.com/kabsikabs/pinnokio/internal/store"
)

type getUserContextArgs struct{}

// NewGetUserContextTool builds the GET_USER_CONTEXT SPT: it returns the
// business configuration resolved for the calling thread.
func NewGetUserContextTool(resolver ContextResolver) *Tool {
	return &Tool{
		Name:        "GET_USER_CONTEXT",
		Description: "Return the business configuration (mandate, ERP, DMS system) resolved for the current thread.",
		Parameters:  mustSchema[getUserContextArgs](),
		Kind:        KindSPT,
		SPT: func(ctx context.Context, env Env, _ map[string]any) (map[string]any, error) {
			c, err := resolver.ResolveContext(ctx, env.UserID, env.CompanyID, env.ThreadKey)
			if err != nil {
				return nil, err
			}
			if c.Empty() {
				return nil, fmt.Errorf("business context not yet resolved for this thread")
			}
			return map[string]any{
				"company_name":           c.CompanyName,
				"mandate_path":           c.MandatePath,
				"dms_system":             c.DMSSystem,
				"bank_erp":               c.BankERP,
				"communication_mode":     c.CommunicationMode,
				"log_communication_mode": c.LogCommunicationMode,
			}, nil
		},
	}
}

type getStructuredDataArgs struct {
	RecordType string `json:"record_type" jsonschema:"required,enum=client,enum=mandate,enum=erp,description=Kind of record to look up"`
	Key        string `json:"key" jsonschema:"required,description=Record key (user ID for client, client UUID for mandate, mandate ID for erp)"`
}

// NewGetStructuredDataTool builds the GET_STRUCTURED_DATA SPT: a direct,
// synchronous read against the structured document store, for lookups
// cheap enough not to warrant a worker round-trip.
func NewGetStructuredDataTool(docs store.DocumentStore) *Tool {
	return &Tool{
		Name:        "GET_STRUCTURED_DATA",
		Description: "Look up structured records (client, mandate, erp) by key.",
		Parameters:  mustSchema[getStructuredDataArgs](),
		Kind:        KindSPT,
		SPT: func(ctx context.Context, env Env, args map[string]any) (map[string]any, error) {
			recordType, _ := args["record_type"].(string)
			key, _ := args["key"].(string)
			switch recordType {
			case "client":
				rec, err := docs.GetClientRecord(ctx, key)
				if err != nil {
					return nil, err
				}
				if rec == nil {
					return map[string]any{"found": false}, nil
				}
				return map[string]any{"found": true, "client_uuid": rec.ClientUUID, "user_id": rec.UserID}, nil
			case "mandate":
				rec, err := docs.GetMandateForCompany(ctx, key, env.CompanyID)
				if err != nil {
					return nil, err
				}
				if rec == nil {
					return map[string]any{"found": false}, nil
				}
				return map[string]any{
					"found":        true,
					"mandate_path": rec.MandatePath,
					"company_name": rec.CompanyName,
					"dms_system":   rec.DMSSystem,
				}, nil
			case "erp":
				rec, err := docs.GetERPForMandate(ctx, key)
				if err != nil {
					return nil, err
				}
				if rec == nil {
					return map[string]any{"found": false}, nil
				}
				return map[string]any{"found": true, "bank_erp": rec.BankERP}, nil
			default:
				return nil, fmt.Errorf("unsupported record_type %q", recordType)
			}
		},
	}
}

type searchVectorStoreArgs struct {
	Query string `json:"query" jsonschema:"required,description=Natural-language search query"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"description=Maximum number of matches,minimum=1,maximum=50"`
}

// NewSearchVectorStoreTool builds the SEARCH_VECTOR_STORE SPT: semantic
// lookup over the mandate's indexed documents.
func NewSearchVectorStoreTool(vs VectorStore, resolver ContextResolver) *Tool {
	return &Tool{
		Name:        "SEARCH_VECTOR_STORE",
		Description: "Semantic search over the mandate's indexed documents.",
		Parameters:  mustSchema[searchVectorStoreArgs](),
		Kind:        KindSPT,
		SPT: func(ctx context.Context, env Env, args map[string]any) (map[string]any, error) {
			c, err := resolver.ResolveContext(ctx, env.UserID, env.CompanyID, env.ThreadKey)
			if err != nil {
				return nil, err
			}
			if c.Empty() {
				return nil, fmt.Errorf("business context not yet resolved for this thread")
			}
			query, _ := args["query"].(string)
			topK := 5
			if v, ok := args["top_k"].(float64); ok && v > 0 {
				topK = int(v)
			}
			matches, err := vs.Search(ctx, c.MandatePath, query, topK)
			if err != nil {
				return nil, err
			}
			results := make([]map[string]any, 0, len(matches))
			for _, m := range matches {
				results = append(results, map[string]any{
					"document_id": m.DocumentID,
					"snippet":     m.Snippet,
					"score":       m.Score,
				})
			}
			return map[string]any{"results": results}, nil
		},
	}
}
