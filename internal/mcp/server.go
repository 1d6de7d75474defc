package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ldi/taskboard/internal/board"
	"github.com/ldi/taskboard/internal/registry"
	"github.com/ldi/taskboard/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server.
func NewServer(svc *board.Service) *server.MCPServer {
	s := server.NewMCPServer("Taskboard", "0.1.0")

	// Tasks
	s.AddTool(mcp.NewTool("list_tasks_by_column",
		mcp.WithDescription("List tasks grouped into todo, inProgress and done columns, after applying the current filters and assignee selection."),
		mcp.WithBoolean("unfiltered", mcp.Description("Return the raw task collection instead of the filtered columns")),
	), listTasksByColumnHandler(svc))

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task in the To Do column."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description("Priority (Low|Medium|High, defaults to Medium)")),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD)")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags; new tags are added to the tag list")),
		mcp.WithString("assignee_id", mcp.Description("Assignee id")),
	), createTaskHandler(svc))

	s.AddTool(mcp.NewTool("edit_task",
		mcp.WithDescription("Edit fields of an existing task. Omitted fields are left unchanged."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("priority", mcp.Description("New priority (Low|Medium|High)")),
		mcp.WithString("status", mcp.Description("New status (todo|inProgress|done)")),
		mcp.WithString("due_date", mcp.Description("New due date; empty clears it")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags replacing the current ones")),
		mcp.WithString("assignee_id", mcp.Description("New assignee id; empty unassigns")),
	), editTaskHandler(svc))

	s.AddTool(mcp.NewTool("move_task",
		mcp.WithDescription("Move a task to another column."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("status", mcp.Description("Target column (todo|inProgress|done)"), mcp.Required()),
	), moveTaskHandler(svc))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
	), deleteTaskHandler(svc))

	// Filters and selections
	s.AddTool(mcp.NewTool("set_filter",
		mcp.WithDescription("Set one board filter."),
		mcp.WithString("field", mcp.Description("Filter field (status|priority|search)"), mcp.Required()),
		mcp.WithString("value", mcp.Description("status: ALL|TODO|IN_PROGRESS|DONE; priority: ALL|HIGH|MEDIUM|LOW; search: free text")),
	), setFilterHandler(svc))

	s.AddTool(mcp.NewTool("add_tag",
		mcp.WithDescription("Add a label to the tag list."),
		mcp.WithString("label", mcp.Description("Tag label"), mcp.Required()),
	), addTagHandler(svc))

	s.AddTool(mcp.NewTool("select_tag",
		mcp.WithDescription("Select a tag, or clear the selection when label is omitted."),
		mcp.WithString("label", mcp.Description("Tag label")),
	), selectTagHandler(svc))

	s.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List known tags and the selected tag."),
	), listTagsHandler(svc))

	s.AddTool(mcp.NewTool("select_assignee",
		mcp.WithDescription("Show only tasks of one assignee, or everyone with ALL."),
		mcp.WithString("id", mcp.Description("Assignee id or ALL"), mcp.Required()),
	), selectAssigneeHandler(svc))

	s.AddTool(mcp.NewTool("list_assignees",
		mcp.WithDescription("List assignees and the selected assignee."),
	), listAssigneesHandler(svc))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, board.ErrInvalid) {
		return mcp.NewToolResultError(strings.TrimPrefix(err.Error(), board.ErrInvalid.Error()+": "))
	}
	return mcp.NewToolResultError(err.Error())
}

func notFound(id string) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("Task with id '%s' not found", id))
}

// splitTags accepts a comma-separated string or a JSON array of strings.
func splitTags(v any) []string {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{}
		}
		return strings.Split(t, ",")
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func listTasksByColumnHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if mcp.ParseBoolean(request, "unfiltered", false) {
			return jsonResult(map[string]any{"tasks": svc.Tasks()})
		}
		return jsonResult(map[string]any{
			"columns": svc.ListTasksByColumn(),
			"filters": svc.Filters(),
		})
	}
}

func createTaskHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		fields := board.TaskFields{
			Title:       mcp.ParseString(request, "title", ""),
			Description: mcp.ParseString(request, "description", ""),
			Priority:    mcp.ParseString(request, "priority", ""),
			DueDate:     mcp.ParseString(request, "due_date", ""),
			Tags:        splitTags(args["tags"]),
			AssigneeID:  mcp.ParseString(request, "assignee_id", ""),
		}

		t, err := svc.CreateTask(ctx, fields)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(t)
	}
}

func editTaskHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		var patch models.TaskPatch
		args, _ := request.Params.Arguments.(map[string]any)
		if title, ok := args["title"].(string); ok {
			patch.Title = &title
		}
		if description, ok := args["description"].(string); ok {
			patch.Description = &description
		}
		if priority, ok := args["priority"].(string); ok {
			p := models.Priority(priority)
			patch.Priority = &p
		}
		if status, ok := args["status"].(string); ok {
			st, err := models.ParseTaskStatus(status)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			patch.Status = &st
		}
		if due, ok := args["due_date"].(string); ok {
			due = strings.TrimSpace(due)
			patch.DueDate = &due
		}
		if v, ok := args["tags"]; ok {
			patch.Tags = splitTags(v)
		}
		if assignee, ok := args["assignee_id"].(string); ok {
			assignee = strings.TrimSpace(assignee)
			patch.AssigneeID = &assignee
		}

		t, found, err := svc.EditTask(ctx, id, patch)
		if err != nil {
			return errorResult(err), nil
		}
		if !found {
			return notFound(id), nil
		}
		return jsonResult(t)
	}
}

func moveTaskHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		status, err := models.ParseTaskStatus(mcp.ParseString(request, "status", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		t, found, err := svc.MoveTask(ctx, id, status)
		if err != nil {
			return errorResult(err), nil
		}
		if !found {
			return notFound(id), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task '%s' moved to %s", t.Title, t.Status.Label())), nil
	}
}

func deleteTaskHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		if !svc.DeleteTask(ctx, id) {
			return notFound(id), nil
		}
		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}

func setFilterHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		field := mcp.ParseString(request, "field", "")
		value := mcp.ParseString(request, "value", "")
		if err := svc.SetFilter(ctx, field, value); err != nil {
			return errorResult(err), nil
		}
		return jsonResult(svc.Filters())
	}
}

func addTagHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		label := strings.TrimSpace(mcp.ParseString(request, "label", ""))
		if label == "" {
			return mcp.NewToolResultError("label is required"), nil
		}
		if !svc.AddTag(ctx, label) {
			return mcp.NewToolResultText(fmt.Sprintf("Tag '%s' already exists", label)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Tag '%s' added", label)), nil
	}
}

func selectTagHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		label := mcp.ParseString(request, "label", "")
		if label == "" {
			svc.SelectTag(ctx, nil)
			return mcp.NewToolResultText("Tag selection cleared"), nil
		}
		svc.SelectTag(ctx, &label)
		return mcp.NewToolResultText(fmt.Sprintf("Tag '%s' selected", label)), nil
	}
}

func listTagsHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st := svc.State()
		return jsonResult(map[string]any{
			"tags":     st.Tags,
			"selected": st.SelectedTag,
		})
	}
}

func selectAssigneeHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := strings.TrimSpace(mcp.ParseString(request, "id", ""))
		if id == "" {
			id = registry.AllAssignees
		}
		svc.SelectAssignee(ctx, id)
		if id == registry.AllAssignees {
			return mcp.NewToolResultText("Showing all assignees"), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Showing tasks of %s", svc.AssigneeName(id))), nil
	}
}

func listAssigneesHandler(svc *board.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st := svc.State()
		return jsonResult(map[string]any{
			"assignees": st.Assignees,
			"selected":  st.SelectedAssignee,
		})
	}
}
