package dto

import "github.com/spec-kit/helpdesk-service/internal/domain"

// AssignTicketRequest payload for PATCH /admin/tickets/:id/assign.
type AssignTicketRequest struct {
	AgentID string `json:"agent_id"`
}

// UpdateRoleRequest payload for PATCH /admin/users/:id/role.
type UpdateRoleRequest struct {
	Role domain.Role `json:"role"`
}
