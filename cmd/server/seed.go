package main

import (
	"fmt"
	"os"

	"mtsp/internal/database"
	"mtsp/internal/models"
	"mtsp/internal/services"
	"mtsp/pkg/logger"
)

// seedData 初始化种子数据：平台超级管理员引导账号
func seedData(userService *services.UserService) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	if err := createSuperAdmin(userService); err != nil {
		return fmt.Errorf("创建超级管理员失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createSuperAdmin 创建平台超级管理员。已存在任意超级管理员则跳过
func createSuperAdmin(userService *services.UserService) error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.GetLogger().Info("超级管理员已存在，跳过创建")
		return nil
	}

	email := os.Getenv("SUPER_ADMIN_EMAIL")
	password := os.Getenv("SUPER_ADMIN_PASSWORD")
	if email == "" {
		email = "admin@mtsp.local"
	}
	if password == "" {
		password = "Admin@123"
		logger.GetLogger().Warn("使用默认超级管理员密码，请尽快修改")
	}

	user, err := userService.CreateSuperAdmin(email, password, "Platform", "Admin")
	if err != nil {
		return err
	}

	logger.GetLogger().Infof("超级管理员创建成功: %s (ID: %d)", user.Email, user.ID)
	return nil
}
