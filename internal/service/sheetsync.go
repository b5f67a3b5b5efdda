package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"game-license-pool/internal/model"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"gorm.io/gorm"
)

// SheetSyncService 把许可证池镜像到运营用的 Google Sheet，
// 列布局 A:I = id, key, state, product, user, expires_on, assigned_at, created_at, updated_at
type SheetSyncService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheetSyncService(enableSync bool, credentialPath, spreadsheetID, sheetName string) (*SheetSyncService, error) {
	if !enableSync {
		return nil, nil
	}

	ctx := context.Background()

	// 读取凭证文件
	b, err := os.ReadFile(credentialPath)
	if err != nil {
		return nil, err
	}

	// 使用服务账号授权
	creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("无法加载凭证: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, err
	}

	return &SheetSyncService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func licenseRow(license *model.License) []interface{} {
	userID := ""
	if license.UserID != nil {
		userID = *license.UserID
	}
	assignedAt := ""
	if license.AssignedAt != nil {
		assignedAt = license.AssignedAt.Format(time.RFC3339)
	}
	return []interface{}{
		license.ID,
		license.Key,
		license.StateID,
		license.ProductID,
		userID,
		license.ExpiresOn.Format("2006-01-02"),
		assignedAt,
		license.CreatedAt.Format(time.RFC3339),
		license.UpdatedAt.Format(time.RFC3339),
	}
}

// SyncLicense 把单条许可证同步到 Sheet，已存在的行更新，否则追加
func (s *SheetSyncService) SyncLicense(license *model.License) error {
	if s == nil {
		return nil
	}

	// 按 id 查找 Sheet 中已有的行
	rangeToSearch := fmt.Sprintf("%s!A2:A", s.sheetName)
	idResp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rangeToSearch).Do()
	if err != nil {
		log.Printf("查询Sheet数据失败: %v", err)
		return fmt.Errorf("查询Sheet数据失败: %v", err)
	}

	var rowIndex int
	found := false
	for i, row := range idResp.Values {
		if len(row) > 0 && row[0] == license.ID {
			found = true
			rowIndex = i + 2 // +2因为A2开始且数组从0开始
			break
		}
	}

	values := [][]interface{}{licenseRow(license)}

	// 根据是否找到决定更新还是追加
	if found {
		rangeData := fmt.Sprintf("%s!A%d:I%d", s.sheetName, rowIndex, rowIndex)
		_, err = s.service.Spreadsheets.Values.Update(
			s.spreadsheetID,
			rangeData,
			&sheets.ValueRange{Values: values},
		).ValueInputOption("USER_ENTERED").Do()
	} else {
		_, err = s.service.Spreadsheets.Values.Append(
			s.spreadsheetID,
			s.sheetName+"!A2:I",
			&sheets.ValueRange{Values: values},
		).ValueInputOption("USER_ENTERED").Do()
	}

	if err != nil {
		log.Printf("同步到Google Sheet失败: %v", err)
		return fmt.Errorf("同步到Google Sheet失败: %v", err)
	}

	log.Printf("成功同步许可证 %s 到Google Sheet", license.ID)
	return nil
}

// BatchSyncLicenses 批量追加许可证到 Sheet
func (s *SheetSyncService) BatchSyncLicenses(licenses []*model.License) error {
	if s == nil {
		return nil
	}

	var values [][]interface{}
	for _, license := range licenses {
		values = append(values, licenseRow(license))
	}

	rangeData := s.sheetName + "!A2:I"
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err := s.service.Spreadsheets.Values.Append(
		s.spreadsheetID,
		rangeData,
		valueRange,
	).ValueInputOption("USER_ENTERED").Do()

	if err != nil {
		log.Printf("批量同步许可证失败: %v", err)
		return err
	}

	return nil
}

// SyncFromSheet 从Google Sheet读取数据并完全覆盖数据库
func (s *SheetSyncService) SyncFromSheet(db *gorm.DB) error {
	if s == nil {
		return nil
	}

	// 读取整个工作表数据
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A2:I").Do()
	if err != nil {
		return fmt.Errorf("读取工作表失败: %v", err)
	}

	// 使用事务确保数据一致性
	err = db.Transaction(func(tx *gorm.DB) error {
		// 1. 清空现有数据
		if err := tx.Where("1 = 1").Delete(&model.License{}).Error; err != nil {
			return fmt.Errorf("清空数据库失败: %v", err)
		}

		// 2. 批量插入Sheet数据
		var licenses []*model.License
		for i, row := range resp.Values {
			if len(row) < 9 {
				log.Printf("第%d行数据不完整，跳过", i+2)
				continue
			}

			license := &model.License{
				ID:        row[0].(string),
				Key:       row[1].(string),
				StateID:   model.NormalizeState(row[2].(string)),
				ProductID: row[3].(string),
			}

			if userID, ok := row[4].(string); ok && userID != "" {
				license.UserID = &userID
			}

			expiresOn, err := time.Parse("2006-01-02", row[5].(string))
			if err != nil {
				log.Printf("解析到期日失败(行%d): %v", i+2, err)
				continue
			}
			license.ExpiresOn = expiresOn

			if assignedAtStr, ok := row[6].(string); ok && assignedAtStr != "" {
				assignedAt, err := time.Parse(time.RFC3339, assignedAtStr)
				if err != nil {
					log.Printf("解析分配时间失败(行%d): %v", i+2, err)
					continue
				}
				license.AssignedAt = &assignedAt
			}

			createdAt, err := time.Parse(time.RFC3339, row[7].(string))
			if err != nil {
				log.Printf("解析创建时间失败(行%d): %v", i+2, err)
				continue
			}
			license.CreatedAt = createdAt

			updatedAt, err := time.Parse(time.RFC3339, row[8].(string))
			if err != nil {
				log.Printf("解析更新时间失败(行%d): %v", i+2, err)
				continue
			}
			license.UpdatedAt = updatedAt
			licenses = append(licenses, license)
		}

		// 批量创建记录
		if err := tx.CreateInBatches(licenses, 100).Error; err != nil {
			return fmt.Errorf("批量插入数据失败: %v", err)
		}

		return nil
	})

	if err != nil {
		return err
	}

	log.Printf("成功从Google Sheet同步%d条数据到数据库(完全覆盖)", len(resp.Values))
	return nil
}
