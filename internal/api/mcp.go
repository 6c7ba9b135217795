package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/meapi/internal/profile"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Profiles *profile.Manager
	Version  string
}

// NewMCPServer creates an MCP server exposing the profile store as tools and
// resources.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"meapi",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("meapi: profile directory with names, contact details, bios and skills."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("list_profiles",
			mcp.WithDescription("List every stored profile."),
		),
		mcpListProfiles(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Fetch one profile by its numeric ID."),
			mcp.WithNumber("id", mcp.Description("Profile ID"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("search_profiles",
			mcp.WithDescription("Case-insensitive substring search over name, email and skills."),
			mcp.WithString("query", mcp.Description("Search term"), mcp.Required()),
		),
		mcpSearchProfiles(deps),
	)

	s.AddTool(
		mcp.NewTool("top_skills",
			mcp.WithDescription("Most common skills across all profiles with their counts."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of skills (default 10, max 100)")),
		),
		mcpTopSkills(deps),
	)

	s.AddTool(
		mcp.NewTool("create_profile",
			mcp.WithDescription("Create a new profile. Email must be unique."),
			mcp.WithString("name", mcp.Description("Full name"), mcp.Required()),
			mcp.WithString("email", mcp.Description("Email address"), mcp.Required()),
			mcp.WithString("phone", mcp.Description("Phone number")),
			mcp.WithString("bio", mcp.Description("Short biography")),
			mcp.WithString("skills", mcp.Description("Comma-separated skills, e.g. \"Go, SQL\"")),
		),
		mcpCreateProfile(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"profiles://all",
			"All Profiles",
			mcp.WithResourceDescription("Every stored profile as a JSON array"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfiles(deps),
	)

	return s
}

func mcpListProfiles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		profiles, err := deps.Profiles.List()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list profiles: %v", err)), nil
		}
		return mcpJSON(profiles)
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		p, err := deps.Profiles.Get(int64(id))
		if errors.Is(err, profile.ErrNotFound) {
			return mcpError("Profile not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}
		return mcpJSON(p)
	}
}

func mcpSearchProfiles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || query == "" {
			return mcpError("query is required"), nil
		}

		profiles, err := deps.Profiles.Search(query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(profiles)
	}
}

func mcpTopSkills(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", defaultTopSkillsLimit)
		if limit <= 0 {
			limit = defaultTopSkillsLimit
		}
		if limit > maxTopSkillsLimit {
			limit = maxTopSkillsLimit
		}

		skills, err := deps.Profiles.TopSkills(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to compute top skills: %v", err)), nil
		}
		return mcpJSON(skills)
	}
}

func mcpCreateProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil || name == "" {
			return mcpError("name is required"), nil
		}
		email, err := req.RequireString("email")
		if err != nil || email == "" {
			return mcpError("email is required"), nil
		}

		p, err := deps.Profiles.Create(profile.CreateRequest{
			Name:   name,
			Email:  email,
			Phone:  req.GetString("phone", ""),
			Bio:    req.GetString("bio", ""),
			Skills: req.GetString("skills", ""),
		})
		if errors.Is(err, profile.ErrEmailTaken) {
			return mcpError("Email already registered"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create profile: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Created profile %d", p.ID)), nil
	}
}

func mcpResourceProfiles(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		profiles, err := deps.Profiles.List()
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w", err)
		}

		b, err := json.Marshal(profiles)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profiles: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
