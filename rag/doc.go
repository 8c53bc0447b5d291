// Copyright (c) SkillFlow Authors.

/*
# 概述

Package rag 提供技能检索所需的向量索引。

FlatIndex 是固定维度的暴力 L2 索引：向量在插入时做 L2 归一化，
因此 L2 距离排序与余弦相似度排序一致。技能规模通常在几十到几千之间，
暴力搜索既精确又足够快。

# 核心类型

  - FlatIndex: Add / Search / Size / Dimension，读写锁保护
  - SearchResult: 插入位置与距离
  - NormalizeL2 / L2Distance: 向量工具函数

# 排序规则

Search 按距离升序返回至多 k 条结果；距离相同时插入位置小者在前，
保证同一输入的结果完全确定。
*/
package rag
