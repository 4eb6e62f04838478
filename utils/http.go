// utils/http.go - Fiber response helpers
package utils

import (
	"strconv"

	"studyhub/apperrors"

	"github.com/gofiber/fiber/v2"
)

// JSONError sends {"success": false, "error": message}
func JSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// AppError maps any error onto its status and message. Backend failures
// keep their details out of the response.
func AppError(c *fiber.Ctx, err error) error {
	appErr := apperrors.As(err)
	body := fiber.Map{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	}
	if appErr.Details != "" && appErr.Status < 500 {
		body["details"] = appErr.Details
	}
	return c.Status(appErr.Status).JSON(body)
}

// JSONSuccess merges a map into {"success": true, ...} or wraps anything
// else under "data".
func JSONSuccess(c *fiber.Ctx, data interface{}) error {
	response := fiber.Map{
		"success": true,
	}

	if dataMap, ok := data.(fiber.Map); ok {
		for k, v := range dataMap {
			response[k] = v
		}
	} else {
		response["data"] = data
	}

	return c.JSON(response)
}

// ParamUint reads a positive numeric route parameter.
func ParamUint(c *fiber.Ctx, key string) (uint, error) {
	n, err := strconv.ParseUint(c.Params(key), 10, 64)
	if err != nil || n == 0 {
		return 0, apperrors.BadRequest("Invalid " + key)
	}
	return uint(n), nil
}

// QueryInt reads an integer query value clamped to [min, max].
func QueryInt(c *fiber.Ctx, key string, def, min, max int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		n = def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
